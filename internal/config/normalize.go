package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAWS()
	c.normalizeNotifications()
	c.normalizeAPI()
	c.normalizeSources()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAWS() {
	c.AWS.AccessKey = strings.TrimSpace(c.AWS.AccessKey)
	if c.AWS.AccessKey == "" {
		if value, ok := os.LookupEnv(envAWSAccessKey); ok {
			c.AWS.AccessKey = strings.TrimSpace(value)
		}
	}
	c.AWS.SecretKey = Secret(strings.TrimSpace(c.AWS.SecretKey.Reveal()))
	if c.AWS.SecretKey.IsZero() {
		if value, ok := os.LookupEnv(envAWSSecretKey); ok {
			c.AWS.SecretKey = Secret(strings.TrimSpace(value))
		}
	}
	c.AWS.Endpoint = strings.TrimRight(strings.TrimSpace(c.AWS.Endpoint), "/")
}

func (c *Config) normalizeNotifications() {
	c.Notifications.DefaultTopicARN = strings.TrimSpace(c.Notifications.DefaultTopicARN)
	c.Notifications.RootURL = strings.TrimSpace(c.Notifications.RootURL)
	if c.Notifications.RootURL != "" && !strings.HasSuffix(c.Notifications.RootURL, "/") {
		c.Notifications.RootURL += "/"
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = Secret(strings.TrimSpace(c.API.Token.Reveal()))
	if c.API.Token.IsZero() {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.API.Token = Secret(strings.TrimSpace(value))
		}
	}
}

func (c *Config) normalizeSources() {
	nats := &c.Sources.NATS
	nats.URL = strings.TrimSpace(nats.URL)
	nats.Subject = strings.TrimSpace(nats.Subject)
	nats.Queue = strings.TrimSpace(nats.Queue)
	if nats.URL == "" {
		nats.URL = defaultNATSURL
	}
	if nats.Subject == "" {
		nats.Subject = defaultNATSSubject
	}

	kafka := &c.Sources.Kafka
	brokers := make([]string, 0, len(kafka.Brokers))
	for _, broker := range kafka.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	kafka.Brokers = brokers
	kafka.Topic = strings.TrimSpace(kafka.Topic)
	if kafka.Topic == "" {
		kafka.Topic = defaultKafkaTopic
	}
	kafka.GroupID = strings.TrimSpace(kafka.GroupID)
	if kafka.GroupID == "" {
		kafka.GroupID = defaultKafkaGroupID
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
