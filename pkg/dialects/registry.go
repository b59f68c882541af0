// pkg/dialects/registry.go
package dialects

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
)

// DataSourceFactory creates a new, unconnected DataSource for one dialect.
type DataSourceFactory func() common.DataSource

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DataSourceFactory)
)

// Register makes a DataSource factory available under name.
// It panics if called twice for the same name or with a nil factory.
func Register(name string, factory DataSourceFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if factory == nil {
		panic("dialects: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("dialects: Register called twice for driver " + name)
	}
	drivers[name] = factory
}

// Get returns the factory registered under name, or nil.
func Get(name string) DataSourceFactory {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return drivers[name]
}

// RegisteredDrivers lists the registered dialect names in sorted order.
func RegisteredDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// Open looks up the factory for cfg.Dialect, creates a DataSource and
// connects it. The dialect package must have been imported for its side
// effects (blank import) beforehand.
func Open(cfg config.DatabaseConfig) (common.DataSource, error) {
	if cfg.Dialect == "" {
		return nil, fmt.Errorf("database dialect not specified in configuration")
	}
	factory := Get(cfg.Dialect)
	if factory == nil {
		return nil, fmt.Errorf("unsupported or unregistered dialect: '%s'. Ensure the driver package was blank imported", cfg.Dialect)
	}
	ds := factory()
	if ds == nil {
		return nil, fmt.Errorf("internal error: factory for dialect '%s' returned nil DataSource", cfg.Dialect)
	}
	if err := ds.Connect(cfg); err != nil {
		return nil, fmt.Errorf("failed to connect data source for dialect '%s': %w", cfg.Dialect, err)
	}
	return ds, nil
}
