// Package settings holds the process-wide notification settings as an
// immutable snapshot. Readers take a Snapshot once per dispatch; administrative
// updates and reloads swap the whole value so no reader sees a partial update.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"snsnotify/internal/config"
)

// Global is one consistent view of the process-wide settings.
type Global struct {
	AccessKey                    string
	SecretKey                    config.Secret
	UseAmbientCredentials        bool
	Endpoint                     string
	DefaultTopicARN              string
	DefaultMessageTemplate       string
	SendOnStart                  bool
	NotifyOnConsecutiveSuccesses bool
	RootURL                      string
}

// HasStaticCredentials reports whether both halves of the key pair are set.
func (g Global) HasStaticCredentials() bool {
	return strings.TrimSpace(g.AccessKey) != "" && !g.SecretKey.IsZero()
}

// MessageTemplate returns the configured default message template or the
// built-in "${BUILD_URL}".
func (g Global) MessageTemplate() string {
	if strings.TrimSpace(g.DefaultMessageTemplate) == "" {
		return config.DefaultMessageTemplate
	}
	return g.DefaultMessageTemplate
}

// FromConfig projects a loaded configuration into a snapshot.
func FromConfig(cfg *config.Config) Global {
	if cfg == nil {
		return Global{}
	}
	return Global{
		AccessKey:                    cfg.AWS.AccessKey,
		SecretKey:                    cfg.AWS.SecretKey,
		UseAmbientCredentials:        cfg.AWS.UseAmbientCredentials,
		Endpoint:                     cfg.AWS.Endpoint,
		DefaultTopicARN:              cfg.Notifications.DefaultTopicARN,
		DefaultMessageTemplate:       cfg.Notifications.DefaultMessageTemplate,
		SendOnStart:                  cfg.Notifications.SendOnStart,
		NotifyOnConsecutiveSuccesses: cfg.Notifications.NotifyOnConsecutiveSuccesses,
		RootURL:                      cfg.Notifications.RootURL,
	}
}

// Provider hands out settings snapshots.
type Provider interface {
	Snapshot() Global
}

// Static is a Provider that always returns the same snapshot.
type Static Global

// Snapshot implements Provider.
func (s Static) Snapshot() Global { return Global(s) }

// Holder stores the current snapshot behind an atomic pointer.
type Holder struct {
	current atomic.Pointer[Global]
}

// NewHolder returns a holder seeded with initial.
func NewHolder(initial Global) *Holder {
	h := &Holder{}
	h.Replace(initial)
	return h
}

// Snapshot returns the current settings by value.
func (h *Holder) Snapshot() Global {
	if h == nil {
		return Global{}
	}
	if g := h.current.Load(); g != nil {
		return *g
	}
	return Global{}
}

// Replace swaps in next and returns the previous snapshot.
func (h *Holder) Replace(next Global) Global {
	prev := h.current.Swap(&next)
	if prev == nil {
		return Global{}
	}
	return *prev
}

// Patch is an administrative update. Nil fields are left unchanged.
type Patch struct {
	AccessKey                    *string `json:"access_key,omitempty"`
	SecretKey                    *string `json:"secret_key,omitempty"`
	UseAmbientCredentials        *bool   `json:"use_ambient_credentials,omitempty"`
	Endpoint                     *string `json:"endpoint,omitempty"`
	DefaultTopicARN              *string `json:"default_topic_arn,omitempty"`
	DefaultMessageTemplate       *string `json:"default_message_template,omitempty"`
	SendOnStart                  *bool   `json:"send_on_start,omitempty"`
	NotifyOnConsecutiveSuccesses *bool   `json:"notify_on_consecutive_successes,omitempty"`
	RootURL                      *string `json:"root_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

func (p Patch) apply(cfg *config.Config) {
	if p.AccessKey != nil {
		cfg.AWS.AccessKey = *p.AccessKey
	}
	if p.SecretKey != nil {
		cfg.AWS.SecretKey = config.Secret(*p.SecretKey)
	}
	if p.UseAmbientCredentials != nil {
		cfg.AWS.UseAmbientCredentials = *p.UseAmbientCredentials
	}
	if p.Endpoint != nil {
		cfg.AWS.Endpoint = *p.Endpoint
	}
	if p.DefaultTopicARN != nil {
		cfg.Notifications.DefaultTopicARN = *p.DefaultTopicARN
	}
	if p.DefaultMessageTemplate != nil {
		cfg.Notifications.DefaultMessageTemplate = *p.DefaultMessageTemplate
	}
	if p.SendOnStart != nil {
		cfg.Notifications.SendOnStart = *p.SendOnStart
	}
	if p.NotifyOnConsecutiveSuccesses != nil {
		cfg.Notifications.NotifyOnConsecutiveSuccesses = *p.NotifyOnConsecutiveSuccesses
	}
	if p.RootURL != nil {
		cfg.Notifications.RootURL = *p.RootURL
	}
}

// ErrNoConfigPath is returned when a Manager cannot persist updates.
var ErrNoConfigPath = errors.New("settings: no configuration file path")

// Manager owns the settings lifecycle: it loads the configuration file at
// startup, applies administrative patches, persists them, and reloads on
// request. Every change ends in one atomic snapshot swap.
type Manager struct {
	holder *Holder
	path   string

	mu  sync.Mutex
	cfg *config.Config
}

// NewManager wraps an already loaded configuration.
func NewManager(cfg *config.Config, path string) *Manager {
	clone := *cfg
	return &Manager{
		holder: NewHolder(FromConfig(&clone)),
		path:   path,
		cfg:    &clone,
	}
}

// Snapshot implements Provider.
func (m *Manager) Snapshot() Global {
	return m.holder.Snapshot()
}

// Config returns a copy of the configuration backing the current snapshot.
func (m *Manager) Config() config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.cfg
}

// Path returns the configuration file the manager persists to.
func (m *Manager) Path() string {
	return m.path
}

// Apply validates a patch, writes only the patched keys to the
// configuration file, then swaps the snapshot.
func (m *Manager) Apply(p Patch) (Global, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(m.path) == "" {
		return Global{}, ErrNoConfigPath
	}

	next := *m.cfg
	p.apply(&next)
	normalizeForSave(&next)
	if err := next.Validate(); err != nil {
		return Global{}, fmt.Errorf("validate settings: %w", err)
	}
	if err := config.UpdateFile(m.path, p.fileUpdates(&next)...); err != nil {
		return Global{}, err
	}
	m.cfg = &next
	snapshot := FromConfig(&next)
	m.holder.Replace(snapshot)
	return snapshot, nil
}

// fileUpdates lists the keys the patch touches, with values taken from the
// normalized cfg. Untouched keys, including secrets sourced from the
// environment, are left out.
func (p Patch) fileUpdates(cfg *config.Config) []config.Update {
	var out []config.Update
	add := func(set bool, section, key string, value any) {
		if set {
			out = append(out, config.Update{Section: section, Key: key, Value: value})
		}
	}
	add(p.AccessKey != nil, "aws", "access_key", cfg.AWS.AccessKey)
	add(p.SecretKey != nil, "aws", "secret_key", cfg.AWS.SecretKey.Reveal())
	add(p.UseAmbientCredentials != nil, "aws", "use_ambient_credentials", cfg.AWS.UseAmbientCredentials)
	add(p.Endpoint != nil, "aws", "endpoint", cfg.AWS.Endpoint)
	add(p.DefaultTopicARN != nil, "notifications", "default_topic_arn", cfg.Notifications.DefaultTopicARN)
	add(p.DefaultMessageTemplate != nil, "notifications", "default_message_template", cfg.Notifications.DefaultMessageTemplate)
	add(p.SendOnStart != nil, "notifications", "send_on_start", cfg.Notifications.SendOnStart)
	add(p.NotifyOnConsecutiveSuccesses != nil, "notifications", "notify_on_consecutive_successes", cfg.Notifications.NotifyOnConsecutiveSuccesses)
	add(p.RootURL != nil, "notifications", "root_url", cfg.Notifications.RootURL)
	return out
}

// Reload re-reads the configuration file and swaps the snapshot.
func (m *Manager) Reload() (Global, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, _, _, err := config.Load(m.path)
	if err != nil {
		return Global{}, fmt.Errorf("reload settings: %w", err)
	}
	m.cfg = cfg
	snapshot := FromConfig(cfg)
	m.holder.Replace(snapshot)
	return snapshot, nil
}

func normalizeForSave(cfg *config.Config) {
	cfg.AWS.AccessKey = strings.TrimSpace(cfg.AWS.AccessKey)
	cfg.AWS.SecretKey = config.Secret(strings.TrimSpace(cfg.AWS.SecretKey.Reveal()))
	cfg.AWS.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.AWS.Endpoint), "/")
	cfg.Notifications.DefaultTopicARN = strings.TrimSpace(cfg.Notifications.DefaultTopicARN)
	root := strings.TrimSpace(cfg.Notifications.RootURL)
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	cfg.Notifications.RootURL = root
}
