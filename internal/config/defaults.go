package config

const (
	defaultConfigPath      = "~/.config/snsnotify/config.toml"
	projectConfigName      = "snsnotify.toml"
	defaultStateDir        = "~/.local/share/snsnotify"
	defaultLogDir          = "~/.local/share/snsnotify/logs"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultAPIBind         = "127.0.0.1:7580"
	defaultNATSURL         = "nats://127.0.0.1:4222"
	defaultNATSSubject     = "builds.events"
	defaultNATSQueue       = "snsnotify"
	defaultKafkaTopic      = "build-events"
	defaultKafkaGroupID    = "snsnotify"
	envAWSAccessKey        = "SNSNOTIFY_AWS_ACCESS_KEY"
	envAWSSecretKey        = "SNSNOTIFY_AWS_SECRET_KEY"
	envAPIToken            = "SNSNOTIFY_API_TOKEN"
	defaultMessageTemplate = "${BUILD_URL}"
)

// DefaultMessageTemplate is used when neither the job nor the global
// configuration supplies a message template.
const DefaultMessageTemplate = defaultMessageTemplate

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Notifications: Notifications{
			SendOnStart:                  false,
			NotifyOnConsecutiveSuccesses: false,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Sources: Sources{
			NATS: NATSSource{
				URL:     defaultNATSURL,
				Subject: defaultNATSSubject,
				Queue:   defaultNATSQueue,
			},
			Kafka: KafkaSource{
				Topic:   defaultKafkaTopic,
				GroupID: defaultKafkaGroupID,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
