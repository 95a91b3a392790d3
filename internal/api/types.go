package api

import (
	"snsnotify/internal/build"
	"snsnotify/internal/config"
	"snsnotify/internal/notifier"
	"snsnotify/internal/settings"
)

// EventResponse is returned for an accepted build event.
type EventResponse struct {
	Outcome notifier.Outcome `json:"outcome"`
	Log     []string         `json:"log"`
}

// JobsResponse lists job attachments.
type JobsResponse struct {
	Jobs []build.JobConfig `json:"jobs"`
}

// JobResponse wraps a single job attachment.
type JobResponse struct {
	Job build.JobConfig `json:"job"`
}

// BuildsResponse lists recorded builds, newest first.
type BuildsResponse struct {
	Builds []build.Record `json:"builds"`
}

// SettingsView is the redacted form of the global settings.
type SettingsView struct {
	AccessKey                    string        `json:"access_key"`
	SecretKey                    config.Secret `json:"secret_key"`
	UseAmbientCredentials        bool          `json:"use_ambient_credentials"`
	Endpoint                     string        `json:"endpoint,omitempty"`
	DefaultTopicARN              string        `json:"default_topic_arn"`
	DefaultMessageTemplate       string        `json:"default_message_template"`
	SendOnStart                  bool          `json:"send_on_start"`
	NotifyOnConsecutiveSuccesses bool          `json:"notify_on_consecutive_successes"`
	RootURL                      string        `json:"root_url"`
}

// FromSettings converts a snapshot into its redacted view.
func FromSettings(g settings.Global) SettingsView {
	return SettingsView{
		AccessKey:                    g.AccessKey,
		SecretKey:                    g.SecretKey,
		UseAmbientCredentials:        g.UseAmbientCredentials,
		Endpoint:                     g.Endpoint,
		DefaultTopicARN:              g.DefaultTopicARN,
		DefaultMessageTemplate:       g.MessageTemplate(),
		SendOnStart:                  g.SendOnStart,
		NotifyOnConsecutiveSuccesses: g.NotifyOnConsecutiveSuccesses,
		RootURL:                      g.RootURL,
	}
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
