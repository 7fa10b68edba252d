package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/abba-pos/api/internal/config"
	"github.com/abba-pos/api/internal/router"
	"github.com/abba-pos/api/internal/store"
	"github.com/abba-pos/api/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment")
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()
	ctx := context.Background()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		logrus.WithError(err).Fatal("apply schema")
	}

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, st, hub)

	logrus.WithField("port", cfg.Port).Info("starting server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
