package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/standardbeagle/clausewitz/internal/ingesterr"
)

// Validator validates configuration and sets smart defaults, grounded
// on the teacher's internal/config/validator.go.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg and fills in any zero-valued
// fields that have a sensible CPU/memory-derived default.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateWatch(&cfg.Watch); err != nil {
		return ingesterr.NewPathError("config.watch", err.Error())
	}
	if err := v.validateIngest(&cfg.Ingest); err != nil {
		return ingesterr.NewPathError("config.ingest", err.Error())
	}
	if err := v.validateCache(&cfg.Cache); err != nil {
		return ingesterr.NewPathError("config.cache", err.Error())
	}
	if err := v.validateServer(&cfg.Server); err != nil {
		return ingesterr.NewPathError("config.server", err.Error())
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateWatch(w *Watch) error {
	if w.Root == "" {
		return errors.New("watch root cannot be empty")
	}
	if w.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms cannot be negative, got %d", w.DebounceMs)
	}
	return nil
}

func (v *Validator) validateIngest(i *Ingest) error {
	if i.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", i.Workers)
	}
	if i.QueueSize < 0 {
		return fmt.Errorf("queue_size cannot be negative, got %d", i.QueueSize)
	}
	if i.TimeoutSec < 0 {
		return fmt.Errorf("timeout_sec cannot be negative, got %d", i.TimeoutSec)
	}
	return nil
}

func (v *Validator) validateCache(c *Cache) error {
	if c.MaxEntries < 0 {
		return fmt.Errorf("max_entries cannot be negative, got %d", c.MaxEntries)
	}
	return nil
}

func (v *Validator) validateServer(s *Server) error {
	if s.Enabled && s.Addr == "" {
		return errors.New("server addr cannot be empty when server is enabled")
	}
	return nil
}

// setSmartDefaults fills zero-valued fields with CPU-derived defaults,
// mirroring the teacher's cores-1-leaves-headroom rule.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = max(1, runtime.NumCPU()-1)
	}
	if cfg.Ingest.QueueSize == 0 {
		cfg.Ingest.QueueSize = 64
	}
	if cfg.Ingest.TimeoutSec == 0 {
		cfg.Ingest.TimeoutSec = 30
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 300
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 256
	}
	if cfg.History.MaxSnapshotsPerCampaign == 0 {
		cfg.History.MaxSnapshotsPerCampaign = 500
	}
}

// ValidateConfig is a convenience wrapper around Validator for callers
// that don't need to hold onto a Validator instance.
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
