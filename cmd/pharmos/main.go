package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/mwangi/pharmos/internal/app"
	"github.com/mwangi/pharmos/internal/backend"
	"github.com/mwangi/pharmos/internal/credential"
	"github.com/mwangi/pharmos/internal/logging"
	"github.com/mwangi/pharmos/internal/model"
	"github.com/mwangi/pharmos/internal/notify"
	"github.com/mwangi/pharmos/internal/store"
	appsync "github.com/mwangi/pharmos/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pharmos: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		return err
	}

	if url := os.Getenv("PHARMOS_BACKEND_URL"); url != "" {
		cfg.Backend.BaseURL = url
	}
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("no backend URL configured; set backend.base_url in %s",
			model.DefaultConfigPath())
	}

	log, err := logging.New(cfg.Storage.LogPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	apiKey, err := credential.APIKey()
	if err != nil {
		return fmt.Errorf(
			"no API key found: set %s or store one in the keyring: %w",
			credential.EnvAPIKey, err)
	}

	bk, err := store.NewSQLiteStore(cfg.Storage.DBPath, log)
	if err != nil {
		return err
	}
	defer bk.Close()

	client := backend.NewClient(cfg.Backend.BaseURL, apiKey, log)

	interval := time.Duration(cfg.Backend.PollIntervalSec) * time.Second
	watcher := appsync.New(client, interval, log)

	feed := notify.NewFeed(bk, watcher.Snapshot, log)
	defer feed.Close()

	watcher.OnChange(func() {
		if err := feed.Refresh(context.Background()); err != nil {
			log.Warn("feed refresh failed", zap.Error(err))
		}
	})
	watcher.Start()
	defer watcher.Stop()

	program := tea.NewProgram(
		app.New(bk, feed, watcher),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
