package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/screenshotos/screenshotos/internal/api"
	"github.com/screenshotos/screenshotos/internal/hotkey"
	"github.com/screenshotos/screenshotos/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ScreenshotOS server",
	Long: `Start the ScreenshotOS server with global shortcuts and the HTTP API.

The server registers the configured capture shortcuts, watches the save
directory, and serves the REST API the desktop frontend talks to.`,
	Example: `  # Start server on default port (8687)
  screenshotos serve

  # Start server on custom port
  screenshotos serve --port 9090

  # Start with debug logging
  screenshotos serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	cfg := app.configMgr.Get()
	log := logger.WithComponent("main")
	log.Info().
		Str("config", app.configMgr.GetConfigPath()).
		Str("save_dir", cfg.SaveDirectory).
		Msg("ScreenshotOS starting")

	// Index the library and keep it current.
	app.idx.StartIndexing(cfg.SaveDirectory)
	if err := app.idx.Watch(cfg.SaveDirectory); err != nil {
		log.Warn().Err(err).Msg("Save directory watcher unavailable")
	}

	// Global shortcuts.
	keys, err := hotkey.NewListener()
	if err != nil {
		log.Warn().Err(err).Msg("Global shortcuts unavailable")
	} else {
		defer keys.Close()
		registerShortcut(keys, cfg.Shortcuts.FullScreen, func() {
			if _, err := app.orch.CaptureFullScreen(context.Background()); err != nil {
				log.Error().Err(err).Msg("Full-screen capture failed")
			}
		})
		registerShortcut(keys, cfg.Shortcuts.AreaCapture, func() {
			if _, err := app.orch.CaptureArea(context.Background()); err != nil {
				log.Error().Err(err).Msg("Area capture failed")
			}
		})
		keys.Start()
	}

	server := api.NewServer(app.orch, app.displays, app.store, app.idx, app.library, app.configMgr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.ServerPort)
	}()

	log.Info().
		Int("port", cfg.ServerPort).
		Str("fullscreen_shortcut", cfg.Shortcuts.FullScreen).
		Str("area_shortcut", cfg.Shortcuts.AreaCapture).
		Msg("ScreenshotOS is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func registerShortcut(keys *hotkey.Listener, accelerator string, action func()) {
	if accelerator == "" {
		return
	}
	if err := keys.Register(accelerator, action); err != nil {
		logger.WithComponent("main").Warn().
			Err(err).
			Str("accelerator", accelerator).
			Msg("Shortcut registration failed")
	}
}
