package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/anrdraft/draft-backend/internal/cards"
	"github.com/anrdraft/draft-backend/internal/config"
	"github.com/anrdraft/draft-backend/internal/httpapi"
	"github.com/anrdraft/draft-backend/internal/hub"
	"github.com/anrdraft/draft-backend/internal/slackbot"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	catalog, err := cards.Load(cfg.CardDataDir)
	if err != nil {
		log.Fatal("loading card feed", zap.Error(err))
	}

	client := slack.New(cfg.SlackToken)
	notifier := slackbot.NewNotifier(client, log.Named("slack"))

	ctx := context.Background()
	h := hub.NewHub(ctx, hub.Config{
		Catalog:  catalog,
		Notifier: notifier,
		Seed:     cfg.ShuffleSeed,
		Log:      log.Named("hub"),
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(&httpapi.API{
		Hub:           h,
		SigningSecret: cfg.SigningSecret,
		Log:           log.Named("http"),
	})

	log.Info("listening", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
