package workers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goaetherbridge/bridge"
	"goaetherbridge/config"
	"goaetherbridge/types"
	"goaetherbridge/workers/handlers"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"
)

// Worker_HTTP serves the bridge API. It runs on the main goroutine and
// signals the other workers to exit on shutdown.
func Worker_HTTP(orch *bridge.Orchestrator, store types.TransactionStore, logger *logrus.Logger) {
	logger.Info("starting HTTP service")

	h := handlers.New(orch, store, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Options("/*", CORSHeaders)

	r.Get("/state", h.State)

	r.Post("/bridge", h.SubmitBridge)
	r.Get("/bridge/quote", h.Quote)
	r.Get("/bridge/tx/{id}", h.GetTransaction)
	r.Post("/bridge/tx/{id}/revert", h.Revert)
	r.Get("/bridge/user/{userID}", h.GetUserTransactions)

	r.Get("/stats/failed", h.GetFailedTransactions)

	var server *http.Server

	if config.Config.Server.UseSSL {
		cert, err := tls.LoadX509KeyPair("certchain.pem", "privatekey.pem")
		if err != nil {
			logger.WithError(err).Fatal("error loading TLS key pair")
		}
		server = &http.Server{
			Addr:    ":443",
			Handler: r,
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		}
	} else {
		server = &http.Server{
			Addr:    fmt.Sprintf(":%d", config.Config.Server.Port),
			Handler: r,
		}
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if config.Config.Server.UseSSL {
			if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Fatal("error listening")
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Fatal("error listening")
			}
		}
	}()
	logger.Info("HTTP service started")

	<-done
	logger.Info("HTTP service stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("HTTP service shutdown error")
	}
	logger.Info("HTTP service shutdown normal")

	// send signal to other threads/workers to exit
	shutdown.Store(true)
}

func CORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Origin, X-Requested-With")
}
