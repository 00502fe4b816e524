package commands

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/screenshotos/screenshotos/internal/activeapp"
	"github.com/screenshotos/screenshotos/internal/capture"
	"github.com/screenshotos/screenshotos/internal/clipboard"
	"github.com/screenshotos/screenshotos/internal/config"
	"github.com/screenshotos/screenshotos/internal/display"
	"github.com/screenshotos/screenshotos/internal/index"
	"github.com/screenshotos/screenshotos/internal/logger"
	"github.com/screenshotos/screenshotos/internal/notify"
	"github.com/screenshotos/screenshotos/internal/orchestrator"
	"github.com/screenshotos/screenshotos/internal/overlay"
	"github.com/screenshotos/screenshotos/internal/sidecar"
	"github.com/screenshotos/screenshotos/internal/storage"
)

// app bundles the wired subsystems behind every command.
type app struct {
	configMgr *config.Manager
	displays  *display.Manager
	backend   capture.Backend
	store     *sidecar.Store
	idx       *index.Indexer
	library   *storage.Library
	orch      *orchestrator.Orchestrator
	notifier  notify.Notifier
}

// newApp loads configuration and connects the capture pipeline.
func newApp() (*app, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Flag overrides beat the config file.
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			configMgr.SetPort(port)
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)

	displayBackend, err := display.NewX11Backend()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	displays := display.NewManager(displayBackend)

	backend := capture.NewScreenBackend()

	apps := activeapp.Provider(activeapp.StaticProvider{Info: activeapp.System})
	if p, err := activeapp.NewX11Provider(); err == nil {
		apps = p
	} else {
		logger.WithComponent("main").Warn().
			Err(err).
			Msg("Foreground app detection unavailable")
	}

	notifier := notify.Notifier(notify.Noop{})
	if n, err := notify.NewDBusNotifier(); err == nil {
		notifier = n
	} else {
		logger.WithComponent("main").Warn().
			Err(err).
			Msg("Desktop notifications unavailable")
	}

	store := sidecar.NewStore()
	idx := index.NewIndexer(store)
	library := storage.NewLibrary(cfg.SaveDirectory, cfg.ArchiveDirectory, cfg.TrashDirectory, store)

	orch := orchestrator.New(
		displays,
		overlay.NewController(backend),
		backend,
		store,
		idx,
		configMgr,
		apps,
		notifier,
		clipboard.NewWriter(),
	)

	return &app{
		configMgr: configMgr,
		displays:  displays,
		backend:   backend,
		store:     store,
		idx:       idx,
		library:   library,
		orch:      orch,
		notifier:  notifier,
	}, nil
}

// close releases display and bus connections.
func (a *app) close() {
	a.idx.StopWatching()
	if err := a.displays.Close(); err != nil {
		logger.WithComponent("main").Warn().Err(err).Msg("Display backend close failed")
	}
	if err := a.notifier.Close(); err != nil {
		logger.WithComponent("main").Debug().Err(err).Msg("Notifier close failed")
	}
}
