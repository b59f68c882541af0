package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/dialects"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/relation"
	"github.com/chmenegatti/multiselect/pkg/relation/mongostore"
	"github.com/chmenegatti/multiselect/pkg/resource"
)

// dialectFor returns the dialect named in the configuration without
// connecting to the database.
func dialectFor(cfg config.DatabaseConfig) (common.Dialect, error) {
	factory := dialects.Get(cfg.Dialect)
	if factory == nil {
		return nil, fmt.Errorf("unsupported or unregistered dialect: '%s' (registered: %v)", cfg.Dialect, dialects.RegisteredDrivers())
	}
	return factory().Dialect(), nil
}

// openPivotStore builds the pivot store selected by relations.store. The
// returned close function releases whatever the store holds.
func openPivotStore(ctx context.Context, cfg config.RelationsConfig, ds common.DataSource, catalog *resource.Catalog, logger *slog.Logger) (relation.PivotStore, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Store {
	case "memory":
		logger.Warn("pivot rows are kept in memory and lost on exit")
		return relation.NewMemoryStore(), noop, nil
	case "mongo":
		store, err := mongostore.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range catalog.Pivots() {
			if err := store.EnsureIndexes(ctx, p); err != nil {
				_ = store.Close(ctx)
				return nil, nil, err
			}
		}
		return store, store.Close, nil
	case "", "sql":
		return relation.NewSQLStore(ds, logger), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown relations store %q", cfg.Store)
	}
}
