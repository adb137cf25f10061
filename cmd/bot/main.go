package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/osse101/KudosBot_Go/internal/activity"
	"github.com/osse101/KudosBot_Go/internal/config"
	"github.com/osse101/KudosBot_Go/internal/discord"
	"github.com/osse101/KudosBot_Go/internal/linktoken"
	"github.com/osse101/KudosBot_Go/internal/server"
	"github.com/osse101/KudosBot_Go/internal/store"
	"github.com/osse101/KudosBot_Go/internal/strava"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Configuration failed", "error", err)
		os.Exit(1)
	}

	initLogger(cfg)

	st, err := store.NewFileStore(cfg.AccountsFile)
	if err != nil {
		slog.Error("Failed to open accounts store", "error", err)
		os.Exit(1)
	}

	broker := linktoken.NewBroker(cfg.LinkTokenTTL)

	stravaClient := strava.NewClient(strava.Config{
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
		URLBase:      cfg.URLBase,
	}, st)

	bot, err := discord.New(discord.Config{
		Token:     cfg.DiscordToken,
		AppID:     cfg.DiscordAppID,
		ChannelID: cfg.DiscordChannelID,
	})
	if err != nil {
		slog.Error("Failed to create bot", "error", err)
		os.Exit(1)
	}

	notifier := discord.NewChannelNotifier(bot.Session, cfg.DiscordChannelID)
	pipeline := activity.NewService(stravaClient, st, notifier)

	srv := server.New(server.Config{
		Port:        cfg.Port,
		VerifyToken: cfg.StravaVerifyToken,
		HTTPSCert:   cfg.HTTPSCert,
		HTTPSKey:    cfg.HTTPSKey,
	}, server.Deps{
		Broker:    broker,
		Store:     st,
		OAuth:     stravaClient,
		Processor: pipeline,
		Announcer: notifier,
	})

	go func() {
		slog.Info("Webhook server listening", "port", cfg.Port, "tls", cfg.TLSEnabled())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Webhook server failed", "error", err)
			os.Exit(1)
		}
	}()

	deps := discord.Deps{
		Broker:    broker,
		Store:     st,
		Strava:    stravaClient,
		ChannelID: cfg.DiscordChannelID,
	}
	bot.Registry.Register(discord.LinkCommand(deps))
	bot.Registry.Register(discord.UnlinkCommand(deps))

	if err := bot.RegisterCommands(); err != nil {
		slog.Error("Failed to register commands", "error", err)
		// Don't exit - bot can still run if commands are already registered
	}

	if err := bot.Run(); err != nil {
		slog.Error("Bot failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Webhook server shutdown failed", "error", err)
	}
}
