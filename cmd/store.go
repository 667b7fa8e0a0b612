// File: cmd/store.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/tastegraph/internal/config"
	"github.com/xkilldash9x/tastegraph/internal/graphdb"
	"github.com/xkilldash9x/tastegraph/internal/observability"
	"github.com/xkilldash9x/tastegraph/internal/store"
)

// newGraphClient builds the graph backend selected by the configuration.
func newGraphClient(cfg config.GraphConfig, logger *zap.Logger) (graphdb.Client, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("Using the in-memory backend; data does not survive the process")
		return graphdb.NewInMemory(logger), nil
	case config.BackendRemote:
		return graphdb.NewRemote(graphdb.RemoteConfig{
			APIURL:         cfg.URL,
			Username:       cfg.Username,
			Password:       cfg.Password,
			RequestTimeout: cfg.RequestTimeout,
			RateLimit:      cfg.RateLimit,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown graph backend %q", cfg.Backend)
	}
}

// openStore connects the store to the configured backend and runs the
// idempotent graph and schema bootstrap.
func openStore(ctx context.Context) (*store.Store, error) {
	logger := observability.GetLogger()
	cfg := appConfig.Graph()

	client, err := newGraphClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	s := store.New(client, cfg.GraphID, logger)
	if err := s.EnsureGraphAndSchema(ctx); err != nil {
		return nil, fmt.Errorf("graph bootstrap failed: %w", err)
	}
	return s, nil
}
