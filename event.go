package kafkaavro

import "context"

// Event is a schema bearing value. Schema returns the AVRO schema the value
// encodes against and Validate reports whether the value satisfies it.
// Implementations are plain structs with hamba/avro field tags.
type Event interface {
	Schema() string
	Validate() error
}

// SchemaIdentified is implemented by events that already carry their
// registry schema id. Events without it are encoded with the id recorded by
// SchemaCache.RegisterSchemas.
type SchemaIdentified interface {
	SchemaID() uint32
}

// EventFactory returns a fresh decode target. The registered factories of a
// Router form the closed set of value alternatives a handler accepts.
type EventFactory func() Event

// Message is a single outgoing record produced by handler logic. Value may
// be nil (tombstone), pre-encoded raw bytes or an Event. Headers are
// rendered on the wire in deterministic key order. A Message is consumed
// exactly once by the producer session and never mutated afterwards.
type Message struct {
	Topic   string
	Key     interface{}
	Value   interface{}
	Headers map[string]string
}

// Handler processes one decoded record and returns zero or more outgoing
// messages. value is nil for tombstone records. Returning an error rewinds
// the consumer loop to the last committed offset.
type Handler func(ctx context.Context, value Event, key string, headers map[string]string, topic string) ([]Message, error)
