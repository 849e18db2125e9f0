package config

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Provider serves the current configuration and hot-reloads it when the file
// changes on disk. Readers call Current() every time they need a value, so a
// reload takes effect on the next orchestrator or pipeline tick without a
// restart. A file that fails to parse is logged and ignored; the previous
// configuration stays in force.
type Provider struct {
	path    string
	current atomic.Pointer[Config]
	modTime atomic.Int64
	logger  zerolog.Logger
}

// NewProvider loads the file once and returns a provider for it
func NewProvider(path string, logger zerolog.Logger) (*Provider, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		path:   path,
		logger: logger,
	}
	p.current.Store(cfg)
	if info, err := os.Stat(path); err == nil {
		p.modTime.Store(info.ModTime().UnixNano())
	}
	return p, nil
}

// NewStaticProvider wraps a fixed configuration, for tests and --simulate
func NewStaticProvider(cfg *Config) *Provider {
	p := &Provider{}
	p.current.Store(cfg)
	return p
}

// Current returns the latest valid configuration
func (p *Provider) Current() *Config {
	return p.current.Load()
}

// Set replaces the configuration, for tests that tighten limits mid-run
func (p *Provider) Set(cfg *Config) {
	p.current.Store(cfg)
}

// Watch polls the file's modification time and reloads on change. It blocks
// until ctx is cancelled.
func (p *Provider) Watch(ctx context.Context, interval time.Duration) {
	if p.path == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reload()
		case <-ctx.Done():
			return
		}
	}
}

func (p *Provider) reload() {
	info, err := os.Stat(p.path)
	if err != nil {
		p.logger.Warn().Err(err).Str("path", p.path).Msg("config stat failed")
		return
	}

	modTime := info.ModTime().UnixNano()
	if modTime == p.modTime.Load() {
		return
	}

	cfg, err := Load(p.path)
	if err != nil {
		p.logger.Error().Err(err).Str("path", p.path).Msg("config reload rejected")
		p.modTime.Store(modTime)
		return
	}

	p.current.Store(cfg)
	p.modTime.Store(modTime)
	p.logger.Info().Str("path", p.path).Msg("configuration reloaded")
}
