package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sam2008610/stock-performance-dashboard/config"
)

type Server struct {
	srv *http.Server
}

func New(cfg *config.Config, controller *Controller) *Server {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(rateLimitMiddleware(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Get("/stock", controller.GetStock)
		r.Get("/stock-list", controller.GetStockList)
		r.Get("/clear-cache", controller.ClearCache)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controller.GetTransactions)
			r.Post("/", controller.AddTransaction)
			r.Delete("/{id}", controller.DeleteTransaction)
		})

		r.Post("/quotes/{symbol}/refresh", controller.RefreshQuote)
		r.Post("/quotes/clear", controller.ClearQuotes)

		r.Get("/portfolio", controller.GetPortfolio)
		r.Get("/portfolio/summary", controller.GetPortfolioSummary)
		r.Post("/portfolio/refresh", controller.ForceRefreshQuotes)

		r.Route("/assets", func(r chi.Router) {
			r.Get("/setup", controller.GetInitialSetup)
			r.Post("/setup", controller.CompleteInitialSetup)
			r.Delete("/setup", controller.ResetInitialSetup)
			r.Get("/history", controller.GetAssetHistory)
			r.Post("/history", controller.AddAssetSnapshot)
			r.Post("/history/rebuild", controller.RebuildAssetHistory)
			r.Put("/cash", controller.UpdateCashBalance)
			r.Get("/trend", controller.GetAssetTrend)
			r.Get("/stocks/{symbol}/history", controller.GetStockHistory)
			r.Get("/stocks/history", controller.GetAllStocksHistory)
		})

		r.Get("/backup", controller.DownloadBackup)
		r.Post("/restore", controller.RestoreBackup)
		r.Post("/backup/upload", controller.UploadBackup)
		r.Get("/report", controller.DownloadReport)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Server{srv: srv}
}

func (s *Server) Start() {
	slog.Info("http server listening", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server stopped", slog.String("err", err.Error()))
		panic(err)
	}
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", slog.String("err", err.Error()))
		return
	}
	slog.Info("http server shutdown completed")
}
