package data

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/sam2008610/stock-performance-dashboard/config"
	_ "modernc.org/sqlite"
)

func NewSqliteClient(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("sqlite", cfg.Sqlite.Path)
	if err != nil {
		slog.Error("Error while opening sqlite", slog.String("path", cfg.Sqlite.Path), slog.String("err", err.Error()))
		panic(err)
	}

	// modernc sqlite serializes writes itself, a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		slog.Error("sqlite ping error")
		panic(err)
	}
	slog.Info("sqlite connected", slog.String("path", cfg.Sqlite.Path))

	migrateSqlite(db, cfg.Sqlite.MigrationDir)
	slog.Info("sqlite migrated successfully")

	return db
}

func migrateSqlite(db *sqlx.DB, migrationDir string) {
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		slog.Error("sqlite migration failed on migratesqlite.WithInstance", slog.String("err", err.Error()))
		panic(err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationDir),
		"sqlite",
		driver,
	)
	if err != nil {
		slog.Error("sqlite migration failed on migrate.NewWithDatabaseInstance", slog.String("err", err.Error()))
		panic(err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		slog.Error("sqlite migration failed on m.Up()", slog.String("err", err.Error()))
		panic(err)
	}
}
