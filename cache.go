package kafkaavro

import (
	"fmt"
	"sync"

	"github.com/hamba/avro/v2"
	"github.com/riferrei/srclient"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

// SchemaEntry is an immutable cache entry binding a registry schema id to
// its definition. Avro holds the parsed schema for AVRO entries and is nil
// for other schema types. Entries live for the process lifetime; the id
// space is small and registries are append-only, so the cache never evicts.
type SchemaEntry struct {
	ID   uint32
	Raw  string
	Type srclient.SchemaType
	Avro avro.Schema
}

// SchemaCache resolves schema ids to parsed schemas, filling lazily from
// the registry. It also records the name to id mapping of schemas
// registered on the producing side.
type SchemaCache struct {
	registry RegistryClient
	logger   log.Logger
	mu       sync.RWMutex
	entries  map[uint32]*SchemaEntry
	ids      map[string]uint32
}

func NewSchemaCache(registry RegistryClient, logger log.Logger) *SchemaCache {
	return &SchemaCache{
		registry: registry,
		logger:   logger,
		entries:  make(map[uint32]*SchemaEntry),
		ids:      make(map[string]uint32),
	}
}

// Resolve returns the entry for the given schema id, fetching it from the
// registry on first reference. Fetch failures are not cached; the next
// reference to the same id retries. Concurrent first-time resolutions may
// both reach the registry, the result is idempotent and the last insert
// wins.
func (c *SchemaCache) Resolve(id uint32) (*SchemaEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		return entry, nil
	}

	info, err := c.registry.FetchSchema(id)
	if err != nil {
		return nil, err
	}

	entry, err = newSchemaEntry(info)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = entry
	c.mu.Unlock()

	c.logger.Debug(fmt.Sprintf(`schema [%d] resolved and cached`, id))

	return entry, nil
}

// RegisterSchemas registers (or looks up) the writer schemas of the given
// producer side events under Confluent subject naming, <topic>-value, and
// records the schema ids the encoder uses for events that do not carry
// SchemaID themselves.
func (c *SchemaCache) RegisterSchemas(events ...Event) error {
	for _, event := range events {
		schema, err := avro.Parse(event.Schema())
		if err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`schema parse failed for %T`, event))
		}

		record, ok := schema.(*avro.RecordSchema)
		if !ok {
			return errors.New(fmt.Sprintf(`schema of %T is not a record schema`, event))
		}

		subject := toKebabCase(record.Name()) + `-value`
		info, err := c.registry.RegisterSchema(subject, event.Schema(), srclient.Avro)
		if err != nil {
			return err
		}

		entry := &SchemaEntry{ID: info.ID, Raw: event.Schema(), Type: srclient.Avro, Avro: schema}

		c.mu.Lock()
		c.entries[info.ID] = entry
		c.ids[record.FullName()] = info.ID
		c.mu.Unlock()

		c.logger.Info(fmt.Sprintf(`schema for subject [%s] registered with id [%d]`, subject, info.ID))
	}

	return nil
}

func (c *SchemaCache) idFor(fullName string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.ids[fullName]
	return id, ok
}

func newSchemaEntry(info SchemaInfo) (*SchemaEntry, error) {
	entry := &SchemaEntry{ID: info.ID, Raw: info.Schema, Type: info.Type}

	if info.Type == srclient.Avro {
		schema, err := avro.Parse(info.Schema)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`schema parse failed for id [%d]`, info.ID))
		}
		entry.Avro = schema
	}

	return entry, nil
}
