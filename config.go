package kafkaavro

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/tryfix/errors"
)

// Recognized environment options.
const (
	envBrokers     = `KAFKA_BROKERS`
	envGroupID     = `KAFKA_CONSUMER_GROUP_ID`
	envRegistryURL = `SCHEMA_REGISTRY_URL`
)

const (
	// DefaultGroupID is used when no consumer group id is configured.
	DefaultGroupID = `default`
	// DefaultRegistryURL points to a local schema registry.
	DefaultRegistryURL = `http://localhost:8081`

	defaultRetryDelay   = 5 * time.Second
	defaultKafkaVersion = `2.8.0`
)

// Config carries process configuration. An empty broker list does not fail
// startup: producer sessions stay unstarted and consumer loops stay
// unsubscribed, each with a warning.
type Config struct {
	Brokers      []string
	GroupID      string
	RegistryURL  string
	RetryDelay   time.Duration
	KafkaVersion string
}

// ConfigFromEnv reads the recognized environment options. KAFKA_BROKERS is
// a comma separated address list; leaving it unset yields an inert client.
func ConfigFromEnv() Config {
	cfg := Config{
		GroupID:     os.Getenv(envGroupID),
		RegistryURL: os.Getenv(envRegistryURL),
	}

	if brokers := os.Getenv(envBrokers); brokers != `` {
		for _, addr := range strings.Split(brokers, `,`) {
			if addr = strings.TrimSpace(addr); addr != `` {
				cfg.Brokers = append(cfg.Brokers, addr)
			}
		}
	}

	return cfg
}

func (c *Config) applyDefaults() {
	if c.GroupID == `` {
		c.GroupID = DefaultGroupID
	}
	if c.RegistryURL == `` {
		c.RegistryURL = DefaultRegistryURL
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.KafkaVersion == `` {
		c.KafkaVersion = defaultKafkaVersion
	}
}

// saramaConfig builds the shared broker configuration: auto-commit stays
// disabled so offsets only move on explicit commit, and consumption starts
// from the oldest available offset for new groups.
func saramaConfig(c Config) (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(c.KafkaVersion)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`invalid kafka version [%s]`, c.KafkaVersion))
	}

	cfg := sarama.NewConfig()
	cfg.Version = version
	cfg.Consumer.Offsets.AutoCommit.Enable = false
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Errors = true

	return cfg, nil
}
