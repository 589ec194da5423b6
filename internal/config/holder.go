package config

import (
	"fmt"
	"sync/atomic"
)

// Holder keeps the active Config and swaps it atomically on Reload.
// Readers always see a complete, validated Config.
type Holder struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewHolder returns a Holder seeded with cfg that reloads from path.
func NewHolder(cfg *Config, path string) *Holder {
	h := &Holder{path: path}
	h.cur.Store(cfg)
	return h
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Reload re-runs the defaults < YAML < ENV pipeline. On error the previous
// configuration stays active.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	h.cur.Store(cfg)
	return nil
}
