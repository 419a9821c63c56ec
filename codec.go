/**
 * Copyright 2024 TryFix Engineering.
 * All rights reserved.
 */

package kafkaavro

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

const magicByte byte = 0x00

// wirePrefixLen is the framing prefix: magic byte plus big-endian uint32
// schema id.
//
//	╔════════════════════╤════════════════════╤══════════════════════╗
//	║ magic byte(1 byte) │ schema id(4 bytes) │ encoded message body ║
//	╚════════════════════╧════════════════════╧══════════════════════╝
const wirePrefixLen = 5

// Codec converts schema bearing values to and from framed byte buffers,
// resolving writer schemas through the shared SchemaCache.
type Codec struct {
	cache  *SchemaCache
	logger log.Logger
}

func newCodec(cache *SchemaCache, logger log.Logger) *Codec {
	return &Codec{cache: cache, logger: logger}
}

// EncodeValue frames the given value. A nil value encodes to a nil payload
// (tombstone), raw bytes pass through unchanged, an Event is validated and
// marshalled behind the framing prefix. Anything else is an
// UnsupportedTypeError.
func (c *Codec) EncodeValue(v interface{}) ([]byte, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case Event:
		return c.encodeEvent(value)
	default:
		return nil, &UnsupportedTypeError{Value: v}
	}
}

func (c *Codec) encodeEvent(value Event) ([]byte, error) {
	if err := value.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	var marshaller Marshaller
	var payload interface{} = value

	if pv, ok := value.(*ProtoValue); ok {
		marshaller = NewProtoMarshaller()
		payload = pv.Msg
	} else {
		schema, err := avroSchemaOf(value)
		if err != nil {
			return nil, err
		}
		marshaller = NewAvroMarshaller(schema)
	}

	id, err := c.schemaIDOf(value)
	if err != nil {
		return nil, err
	}

	body, err := marshaller.Marshall(payload)
	if err != nil {
		return nil, err
	}

	return frame(id, body), nil
}

func (c *Codec) schemaIDOf(value Event) (uint32, error) {
	if identified, ok := value.(SchemaIdentified); ok {
		return identified.SchemaID(), nil
	}

	schema, err := avroSchemaOf(value)
	if err != nil {
		return 0, err
	}

	name := schema.FullName()
	if id, ok := c.cache.idFor(name); ok {
		return id, nil
	}

	return 0, errors.New(fmt.Sprintf(`no schema id known for [%s], register it with RegisterSchemas first`, name))
}

// DecodeValue decodes framed bytes into a fresh event produced by factory.
// A nil payload decodes to a nil event without touching the schema cache.
// A frame that does not start with the magic byte fails with FramingError.
// The decoded event is validated before it is returned.
func (c *Codec) DecodeValue(data []byte, factory EventFactory) (Event, error) {
	if data == nil {
		return nil, nil
	}

	entry, body, err := c.openFrame(data)
	if err != nil {
		return nil, err
	}

	target := factory()

	var unmarshaler Unmarshaler
	var in interface{} = target

	if pv, ok := target.(*ProtoValue); ok {
		pv.ID = entry.ID
		unmarshaler = NewProtoMarshaller().NewUnmarshaler(body)
		in = pv.Msg
	} else {
		if entry.Avro == nil {
			return nil, errors.New(fmt.Sprintf(`schema [%d] is not an avro schema`, entry.ID))
		}
		unmarshaler = NewAvroMarshaller(entry.Avro).NewUnmarshaler(body)
	}

	if err := unmarshaler.Unmarshal(in); err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`decode failed for schema [%d]`, entry.ID))
	}

	if err := target.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	return target, nil
}

// DecodeGeneric decodes a framed AVRO payload into a generic go value with
// no target type, useful for tooling that inspects unknown topics.
func (c *Codec) DecodeGeneric(data []byte) (interface{}, error) {
	if data == nil {
		return nil, nil
	}

	entry, body, err := c.openFrame(data)
	if err != nil {
		return nil, err
	}

	if entry.Avro == nil {
		return nil, errors.New(fmt.Sprintf(`schema [%d] is not an avro schema`, entry.ID))
	}

	var v interface{}
	if err := NewAvroMarshaller(entry.Avro).NewUnmarshaler(body).Unmarshal(&v); err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`generic decode failed for schema [%d]`, entry.ID))
	}

	return v, nil
}

// openFrame checks the framing prefix and resolves the writer schema. The
// magic byte check happens before any schema resolution.
func (c *Codec) openFrame(data []byte) (*SchemaEntry, []byte, error) {
	if len(data) < wirePrefixLen {
		return nil, nil, &FramingError{Len: len(data)}
	}

	if data[0] != magicByte {
		return nil, nil, &FramingError{Byte: data[0], Len: len(data)}
	}

	id := binary.BigEndian.Uint32(data[1:wirePrefixLen])

	entry, err := c.cache.Resolve(id)
	if err != nil {
		return nil, nil, err
	}

	return entry, data[wirePrefixLen:], nil
}

func frame(id uint32, body []byte) []byte {
	byt := make([]byte, wirePrefixLen+len(body))
	byt[0] = magicByte
	binary.BigEndian.PutUint32(byt[1:wirePrefixLen], id)
	copy(byt[wirePrefixLen:], body)
	return byt
}

// encodeKey serializes a record key: nil stays absent, raw bytes pass
// through, everything else is the UTF-8 text of its string form.
func encodeKey(key interface{}) []byte {
	switch k := key.(type) {
	case nil:
		return nil
	case []byte:
		return k
	case string:
		return []byte(k)
	default:
		return []byte(fmt.Sprint(k))
	}
}

// decodeKey decodes a record key as UTF-8 text. A nil key decodes to the
// empty string; invalid UTF-8 fails with KeyDecodeError.
func decodeKey(raw []byte) (string, error) {
	if raw == nil {
		return ``, nil
	}

	if !utf8.Valid(raw) {
		return ``, &KeyDecodeError{Key: raw}
	}

	return string(raw), nil
}
