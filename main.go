package main

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/lmittmann/tint"
	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/ryanshannon/speech-to-text/audiocapture"
	"github.com/ryanshannon/speech-to-text/clipboard"
	"github.com/ryanshannon/speech-to-text/config"
	"github.com/ryanshannon/speech-to-text/hotkey"
	"github.com/ryanshannon/speech-to-text/internal/app"
	"github.com/ryanshannon/speech-to-text/internal/tray"
	"github.com/ryanshannon/speech-to-text/notify"
	"github.com/ryanshannon/speech-to-text/stt"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	})))
	slog.Info("starting", "version", version, "commit", commit, "date", date)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config, using defaults", "error", err)
		cfg = config.Default()
	}
	slog.Info("configured", "hotkey", cfg.Hotkey, "api", cfg.APIURL, "language", cfg.Language)

	// Sweep staging files a previous run may have left behind.
	stt.CleanupTempFiles(os.TempDir())

	source, err := hotkey.NewGohookSource(cfg.Hotkey)
	if err != nil {
		slog.Error("parse hotkey", "hotkey", cfg.Hotkey, "error", err)
		os.Exit(1)
	}
	watcher := hotkey.NewWatcher(source, hotkey.DefaultInterval)

	recorder := audiocapture.New(audiocapture.Format{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		ChunkSize:  cfg.Audio.ChunkSize,
	})

	client := stt.New(stt.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.RequestTimeout(),
	})
	logServerModels(client)

	publisher := clipboard.NewPublisher(cfg.CopyToClipboard, cfg.AutoPaste)
	notifier := notify.New(cfg.ShowNotifications)

	wailsApp := application.New(application.Options{
		Name:        "Speech to Text",
		Description: "Push-to-talk dictation",
		Mac: application.MacOptions{
			// Tray-only app: no window to close, never quit on window close.
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	systemTray := wailsApp.SystemTray.New()
	sink := tray.New(systemTray)

	trayMenu := wailsApp.NewMenu()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			wailsApp.Quit()
		})
	systemTray.SetMenu(trayMenu)

	controller := app.New(cfg, watcher.Events(), recorder, client, publisher, notifier, sink)

	ctx, cancel := context.WithCancel(context.Background())
	watcher.Start()

	controllerDone := make(chan struct{})
	go func() {
		controller.Run(ctx)
		close(controllerDone)
	}()

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}

	cancel()
	watcher.Stop()
	source.Close()
	<-controllerDone
	sink.Close()
	slog.Info("stopped")
}

// logServerModels reports which Whisper model the server is running. Best
// effort: the server may well be down at startup.
func logServerModels(client *stt.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		slog.Debug("list server models", "error", err)
		return
	}
	available := make([]string, 0, len(models.Available))
	for name := range models.Available {
		available = append(available, name)
	}
	sort.Strings(available)
	slog.Info("server models", "current", models.Current, "available", available)
}
