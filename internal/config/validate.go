package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAWS(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAWS() error {
	if c.AWS.Endpoint == "" {
		return nil
	}
	parsed, err := url.Parse(c.AWS.Endpoint)
	if err != nil {
		return fmt.Errorf("aws.endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("aws.endpoint must be an http or https URL, got %q", c.AWS.Endpoint)
	}
	if parsed.Host == "" {
		return fmt.Errorf("aws.endpoint is missing a host: %q", c.AWS.Endpoint)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RootURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.RootURL)
	if err != nil {
		return fmt.Errorf("notifications.root_url: %w", err)
	}
	if !parsed.IsAbs() {
		return fmt.Errorf("notifications.root_url must be absolute, got %q", c.Notifications.RootURL)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind: %w", err)
	}
	return nil
}

func (c *Config) validateSources() error {
	if c.Sources.NATS.Enabled {
		if _, err := url.Parse(c.Sources.NATS.URL); err != nil {
			return fmt.Errorf("sources.nats.url: %w", err)
		}
	}
	if c.Sources.Kafka.Enabled && len(c.Sources.Kafka.Brokers) == 0 {
		return errors.New("sources.kafka.brokers must list at least one broker when kafka is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
