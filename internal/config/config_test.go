package config_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"snsnotify/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SNSNOTIFY_AWS_ACCESS_KEY", "AKIAEXAMPLE")
	t.Setenv("SNSNOTIFY_AWS_SECRET_KEY", "shh")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "snsnotify")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.API.Bind != "127.0.0.1:7580" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.AWS.AccessKey != "AKIAEXAMPLE" {
		t.Fatalf("expected access key from env, got %q", cfg.AWS.AccessKey)
	}
	if cfg.AWS.SecretKey.Reveal() != "shh" {
		t.Fatal("expected secret key from env")
	}
	if cfg.Notifications.NotifyOnConsecutiveSuccesses {
		t.Fatal("expected consecutive success suppression on by default")
	}
	if cfg.Notifications.SendOnStart {
		t.Fatal("expected start notifications off by default")
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "snsnotify.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
state_dir = "` + filepath.ToSlash(filepath.Join(dir, "state")) + `"

[aws]
access_key = " AKIA "
secret_key = "secret"
endpoint = "http://localhost:4566/"

[notifications]
default_topic_arn = "arn:aws:sns:us-east-1:123456789012:builds"
send_on_start = true
root_url = "https://ci.example.com"

[sources.kafka]
enabled = true
brokers = ["broker-1:9092", " "]

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.AWS.AccessKey != "AKIA" {
		t.Fatalf("expected trimmed access key, got %q", cfg.AWS.AccessKey)
	}
	if cfg.AWS.Endpoint != "http://localhost:4566" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.AWS.Endpoint)
	}
	if cfg.Notifications.RootURL != "https://ci.example.com/" {
		t.Fatalf("expected root url with trailing slash, got %q", cfg.Notifications.RootURL)
	}
	if !cfg.Notifications.SendOnStart {
		t.Fatal("expected send_on_start from file")
	}
	if len(cfg.Sources.Kafka.Brokers) != 1 || cfg.Sources.Kafka.Brokers[0] != "broker-1:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Sources.Kafka.Brokers)
	}
	if cfg.Sources.Kafka.GroupID != "snsnotify" {
		t.Fatalf("expected default group id, got %q", cfg.Sources.Kafka.GroupID)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"endpoint scheme":  func(c *config.Config) { c.AWS.Endpoint = "ftp://example.com" },
		"relative root":    func(c *config.Config) { c.Notifications.RootURL = "ci/jobs" },
		"bind":             func(c *config.Config) { c.API.Bind = "localhost" },
		"kafka no brokers": func(c *config.Config) { c.Sources.Kafka.Enabled = true },
		"log format":       func(c *config.Config) { c.Logging.Format = "xml" },
		"log level":        func(c *config.Config) { c.Logging.Level = "trace" },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestSecretIsRedacted(t *testing.T) {
	secret := config.Secret("hunter2")
	for _, rendered := range []string{
		secret.String(),
		fmt.Sprintf("%v", secret),
		fmt.Sprintf("%#v", secret),
		fmt.Sprintf("%+v", config.AWS{SecretKey: secret}),
	} {
		if strings.Contains(rendered, "hunter2") {
			t.Fatalf("secret leaked in %q", rendered)
		}
	}
	data, err := json.Marshal(struct {
		Key config.Secret `json:"key"`
	}{secret})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Fatalf("secret leaked in json %s", data)
	}
	if secret.Reveal() != "hunter2" {
		t.Fatal("Reveal should return the plain value")
	}
}

func TestSaveRoundTripsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := config.Default()
	cfg.AWS.SecretKey = "plain-secret"
	cfg.Notifications.DefaultTopicARN = "arn:aws:sns:eu-west-1:123456789012:t"

	if err := config.Save(path, &cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("saved config is not valid TOML: %v", err)
	}
	if decoded.AWS.SecretKey.Reveal() != "plain-secret" {
		t.Fatal("expected secret persisted in plain text")
	}
	if decoded.Notifications.DefaultTopicARN != cfg.Notifications.DefaultTopicARN {
		t.Fatalf("unexpected topic %q", decoded.Notifications.DefaultTopicARN)
	}
}

func TestSampleConfigIsValidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is invalid TOML: %v", err)
	}
	if cfg.API.Bind != "127.0.0.1:7580" {
		t.Fatalf("unexpected sample bind %q", cfg.API.Bind)
	}
}
