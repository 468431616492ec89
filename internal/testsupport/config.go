package testsupport

import (
	"path/filepath"
	"testing"

	"storyboard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.TextGen.APIKey = "test"
	cfgVal.ImageGen.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPromptMode overrides the prompt generation strategy on the test config.
func WithPromptMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.PromptMode = mode
	}
}

// WithImageItemDelay overrides the pause between image generations.
func WithImageItemDelay(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.ImageItemDelayMS = ms
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
