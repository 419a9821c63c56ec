/**
 * Copyright 2024 TryFix Engineering.
 * All rights reserved.
 */

package kafkaavro

import (
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/tryfix/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// Marshaller abstracts the body encoding of a framed message. The framing
// prefix is independent of it; only the bytes after the schema id differ
// between marshallers.
type Marshaller interface {
	Marshall(v interface{}) ([]byte, error)
	NewUnmarshaler(data []byte) Unmarshaler
}

type Unmarshaler interface {
	Unmarshal(in interface{}) error
}

type AvroMarshaller struct {
	schema avro.Schema
}

func NewAvroMarshaller(schema avro.Schema) *AvroMarshaller {
	return &AvroMarshaller{schema: schema}
}

func (s *AvroMarshaller) Marshall(v interface{}) ([]byte, error) {
	byt, err := avro.Marshal(s.schema, v)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`avro marshal failed for schema %s`, s.schema))
	}

	return byt, nil
}

func (s *AvroMarshaller) NewUnmarshaler(data []byte) Unmarshaler {
	return &AvroUnmarshaler{
		schema: s.schema,
		data:   data,
	}
}

type AvroUnmarshaler struct {
	schema avro.Schema
	data   []byte
}

func (s *AvroUnmarshaler) Unmarshal(in interface{}) error {
	return avro.Unmarshal(s.schema, s.data, in)
}

// ProtoMarshaller encodes protobuf bodies wrapped in an anypb envelope so
// the receiving side can unmarshal without compiled descriptors for the
// registry schema.
type ProtoMarshaller struct{}

func NewProtoMarshaller() *ProtoMarshaller {
	return &ProtoMarshaller{}
}

func (s *ProtoMarshaller) Marshall(v interface{}) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, errors.New(fmt.Sprintf(`value of type %T is not a proto message`, v))
	}

	anyPB, err := anypb.New(msg)
	if err != nil {
		return nil, errors.WithPrevious(err, `failed to add message into anypb`)
	}

	value, err := proto.Marshal(anyPB)
	if err != nil {
		return nil, errors.WithPrevious(err, `failed to marshal anypb wrapper`)
	}

	return value, nil
}

func (s *ProtoMarshaller) NewUnmarshaler(data []byte) Unmarshaler {
	return &ProtoUnmarshaler{data: data}
}

type ProtoUnmarshaler struct {
	data []byte
}

func (s *ProtoUnmarshaler) Unmarshal(in interface{}) error {
	msg, ok := in.(proto.Message)
	if !ok {
		return errors.New(fmt.Sprintf(`decode target of type %T is not a proto message`, in))
	}

	wrapper := &anypb.Any{}
	if err := proto.Unmarshal(s.data, wrapper); err != nil {
		return errors.WithPrevious(err, `failed to unmarshal anypb wrapper`)
	}

	if err := anypb.UnmarshalTo(wrapper, msg, proto.UnmarshalOptions{}); err != nil {
		return errors.WithPrevious(err, `failed to unmarshal anypb`)
	}

	return nil
}

// ProtoValue adapts a protobuf message to the Event interface. The schema
// definition lives in the registry, so Schema returns an empty string and
// the id must be set explicitly on the producing side. On the consuming
// side the codec fills ID from the frame.
type ProtoValue struct {
	ID  uint32
	Msg proto.Message
}

func (p *ProtoValue) Schema() string { return `` }

func (p *ProtoValue) SchemaID() uint32 { return p.ID }

func (p *ProtoValue) Validate() error {
	if p.Msg == nil {
		return errors.New(`proto value holds no message`)
	}

	return nil
}
