package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketchat/internal/auth"
	"marketchat/internal/config"
	"marketchat/internal/gateway"
	"marketchat/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize services
	authService := auth.NewService(cfg)
	registry := gateway.NewRegistry()
	chatHandler := gateway.NewHandler(authService, registry)

	// Setup routes
	router := mux.NewRouter()
	router.HandleFunc("/ws/chat/{room}/", chatHandler.HandleChat)
	router.HandleFunc("/token", chatHandler.HandleToken)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("chat gateway listening on %s", cfg.Server.Port)
	logger.Info("websocket endpoint: ws://localhost%s/ws/chat/{room}/", cfg.Server.Port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("gateway shutting down...")

	registry.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error: %v", err)
	}
}
