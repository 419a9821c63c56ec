package kafkaavro

import (
	"sync"

	"github.com/IBM/sarama"
	"github.com/riferrei/srclient"
	"github.com/tryfix/log"
)

type options struct {
	logger    log.Logger
	registry  RegistryClient
	saramaCfg *sarama.Config
}

// Option is a type to host Client configurations.
type Option func(*options)

// WithLogger returns a configuration to create a Client with the given
// logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistryClient swaps the schema registry client, typically for
// srclient.CreateMockSchemaRegistryClient in tests.
func WithRegistryClient(client srclient.ISchemaRegistryClient) Option {
	return func(o *options) {
		o.registry = WrapRegistryClient(client)
	}
}

// WithRegistry swaps the whole registry collaborator.
func WithRegistry(registry RegistryClient) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithSaramaConfig overrides the broker configuration built from Config.
func WithSaramaConfig(cfg *sarama.Config) Option {
	return func(o *options) {
		o.saramaCfg = cfg
	}
}

// Client is the application context owning the process-wide shared state:
// the schema cache and the producer session. Consumer loops are started
// from it and share both.
type Client struct {
	config    Config
	logger    log.Logger
	cache     *SchemaCache
	codec     *Codec
	saramaCfg *sarama.Config

	mu      sync.Mutex
	session *Session
}

// NewClient returns a Client for the given configuration.
func NewClient(config Config, opts ...Option) (*Client, error) {
	config.applyDefaults()

	o := new(options)
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}
	if o.registry == nil {
		o.registry = NewRegistryClient(config.RegistryURL)
	}
	if o.saramaCfg == nil {
		cfg, err := saramaConfig(config)
		if err != nil {
			return nil, err
		}
		o.saramaCfg = cfg
	}

	cache := NewSchemaCache(o.registry, o.logger.NewLog(log.Prefixed(`schemas`)))

	return &Client{
		config:    config,
		logger:    o.logger,
		cache:     cache,
		codec:     newCodec(cache, o.logger),
		saramaCfg: o.saramaCfg,
	}, nil
}

// Producer returns the shared producer session, creating and starting it on
// first use. Starting an already started session is a no-op, so concurrent
// first uses are safe.
func (c *Client) Producer() (*Session, error) {
	c.mu.Lock()
	if c.session == nil {
		c.session = newSession(c.config.Brokers, c.saramaCfg, c.codec, c.logger.NewLog(log.Prefixed(`producer`)))
	}
	session := c.session
	c.mu.Unlock()

	if err := session.start(); err != nil {
		return nil, err
	}

	return session, nil
}

// Codec exposes the wire codec bound to this client's schema cache.
func (c *Client) Codec() *Codec { return c.codec }

// Cache exposes the shared schema cache.
func (c *Client) Cache() *SchemaCache { return c.cache }

// RegisterSchemas registers the writer schemas of producer side events.
func (c *Client) RegisterSchemas(events ...Event) error {
	return c.cache.RegisterSchemas(events...)
}

// Close shuts the shared producer session down. Loops are closed
// individually by their owners.
func (c *Client) Close() error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}

	return session.Close()
}
