package storage

import (
	"context"
	"fmt"
)

// StoreConstructor is a function that creates a store instance
type StoreConstructor func(ctx context.Context, cfg Config) (Store, error)

var storeRegistry = make(map[string]StoreConstructor)

// RegisterStore registers a store constructor under a type name
func RegisterStore(storeType string, constructor StoreConstructor) {
	storeRegistry[storeType] = constructor
}

// Factory creates storage destinations from configuration
type Factory struct{}

// NewFactory creates a new factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a store from config
func (f *Factory) Create(ctx context.Context, cfg Config) (Store, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("destination %s is disabled", cfg.Name)
	}

	constructor, ok := storeRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}

	return constructor(ctx, cfg)
}

// CreateFirstEnabled instantiates the first enabled destination.
// Backup and restore run against a single store; additional
// destinations act as fallbacks that operators can reorder.
func (f *Factory) CreateFirstEnabled(ctx context.Context, configs []Config) (Store, error) {
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		store, err := f.Create(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create destination %s: %w", cfg.Name, err)
		}
		return store, nil
	}

	return nil, fmt.Errorf("no enabled storage destination configured")
}
