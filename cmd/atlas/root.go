package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lmarchau/provider-atlas/internal/config"
	"github.com/lmarchau/provider-atlas/internal/domain"
	"github.com/lmarchau/provider-atlas/internal/geocache"
	"github.com/lmarchau/provider-atlas/internal/kvstore"
	"github.com/lmarchau/provider-atlas/internal/nominatim"
	"github.com/lmarchau/provider-atlas/internal/observability"
	"github.com/lmarchau/provider-atlas/internal/remote"
	"github.com/lmarchau/provider-atlas/internal/store"
)

// app carries the pieces every subcommand needs, built once in the
// persistent pre-run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "atlas",
		Short:         "Field-service provider directory with address resolution and remote sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is a convenience for development, never required.
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
			a.metrics = observability.NewMetrics()
			return nil
		},
	}

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newNearestCmd(a))
	return root
}

// openMirror returns the configured local mirror: SQLite-backed when
// MIRROR_PATH is set, otherwise in-memory.
func (a *app) openMirror() (kvstore.Store, error) {
	if a.cfg.MirrorPath == "" {
		a.logger.Info("using in-memory local mirror")
		return kvstore.NewMemory(), nil
	}
	a.logger.Info("opening local mirror", "path", a.cfg.MirrorPath)
	return kvstore.OpenSQLite(a.cfg.MirrorPath)
}

// buildResolver wires the cached, rate-limited geocode resolver over the
// configured transport strategies.
func (a *app) buildResolver(kv kvstore.Store) *nominatim.Resolver {
	var endpoints []nominatim.Endpoint
	if a.cfg.GeocodeRelayURL != "" {
		endpoints = append(endpoints, nominatim.Endpoint{
			Name:    "relay",
			BaseURL: a.cfg.GeocodeRelayURL,
		})
	}
	if a.cfg.GeocodeDirectURL != "" {
		endpoints = append(endpoints, nominatim.Endpoint{
			Name:      "direct",
			BaseURL:   a.cfg.GeocodeDirectURL,
			UserAgent: a.cfg.GeocodeUserAgent,
		})
	}

	return nominatim.NewResolver(
		geocache.New(kv, a.logger, a.metrics),
		nominatim.NewClient(a.cfg.GeocodeTimeout, a.logger, a.metrics),
		endpoints,
		a.normalizer(),
		a.cfg.GeocodeMinInterval,
		nominatim.RetryPolicy{
			MaxAttempts: a.cfg.GeocodeAttempts,
			BaseDelay:   a.cfg.GeocodeBaseDelay,
			MaxDelay:    a.cfg.GeocodeMaxDelay,
		},
		a.logger,
		a.metrics,
	)
}

func (a *app) normalizer() *domain.Normalizer {
	return domain.NewNormalizer(domain.DefaultSubstitutions, a.cfg.CountrySuffix)
}

// buildRemote returns the remote document store, or nil for local-only runs.
func (a *app) buildRemote() remote.Store {
	if a.cfg.RemoteBaseURL == "" {
		return nil
	}
	return remote.NewHTTPStore(a.cfg.RemoteBaseURL, a.cfg.RemoteTimeout, a.logger)
}

// buildStore assembles the provider store over the given mirror.
func (a *app) buildStore(kv kvstore.Store, opts store.Options) *store.Store {
	return store.New(kv, opts, a.normalizer(), a.logger, a.metrics)
}
