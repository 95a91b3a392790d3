package testsupport

import (
	"path/filepath"
	"testing"

	"snsnotify/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Static test credentials are set and the API binds to an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.AWS.AccessKey = "AKIATEST"
	cfgVal.AWS.SecretKey = config.Secret("test-secret")
	cfgVal.API.Bind = "127.0.0.1:0"

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

// WithDefaultTopic sets the global default topic ARN.
func WithDefaultTopic(arn string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.DefaultTopicARN = arn
	}
}

// WithEndpoint points SNS calls at a custom endpoint, typically an
// httptest server.
func WithEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.AWS.Endpoint = endpoint
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = config.Secret(token)
	}
}

// WithoutCredentials clears the static key pair.
func WithoutCredentials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.AWS.AccessKey = ""
		b.cfg.AWS.SecretKey = ""
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
