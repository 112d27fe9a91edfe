// Пакет server — HTTP-сервер Metadata Index с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/metadata-index/internal/config"
)

// RouteRegistrar регистрирует маршруты API в роутере.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server — HTTP-сервер Metadata Index.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами routes.
// middlewares применяются в порядке переданного среза.
func New(cfg *config.Config, logger *slog.Logger, routes RouteRegistrar, middlewares ...func(http.Handler) http.Handler) *Server {
	router := chi.NewRouter()

	for _, mw := range middlewares {
		router.Use(mw)
	}
	routes.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// Handler возвращает корневой обработчик (роутер с middleware).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve запускает сервер и выполняет graceful shutdown при отмене ctx.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Получен сигнал завершения")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
