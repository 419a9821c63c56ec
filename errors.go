package kafkaavro

import "fmt"

// FramingError reports a payload that does not carry the expected wire
// framing: either the leading byte is not the magic byte or the buffer is
// shorter than the five byte prefix. The consumer loop treats it as a
// per-record condition and skips the record.
type FramingError struct {
	Byte byte
	Len  int
}

func (e *FramingError) Error() string {
	if e.Len < wirePrefixLen {
		return fmt.Sprintf(`kafkaavro: framed message too short [%d]`, e.Len)
	}
	return fmt.Sprintf(`kafkaavro: invalid magic byte [%#02x], expected [%#02x]`, e.Byte, magicByte)
}

// KeyDecodeError reports a record key that is not valid UTF-8. Like
// FramingError it is recoverable: the record is skipped, not retried.
type KeyDecodeError struct {
	Key []byte
}

func (e *KeyDecodeError) Error() string {
	return fmt.Sprintf(`kafkaavro: record key is not valid utf-8 [% x]`, e.Key)
}

// ValidationError reports a value that failed its own schema validation,
// either before encoding or after decoding. Decoding validation failures
// escalate to the loop retry policy.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(`kafkaavro: value validation failed due to %s`, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnsupportedTypeError reports an attempt to encode a value that is neither
// absent, raw bytes nor an Event. It is a programming error at the Send
// call site and is never retried.
type UnsupportedTypeError struct {
	Value interface{}
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf(`kafkaavro: value of type %T is not supported`, e.Value)
}

// DuplicateTopicError reports two handlers bound to the same derived topic.
// It is raised at registration time, before any subscription happens.
type DuplicateTopicError struct {
	Topic string
}

func (e *DuplicateTopicError) Error() string {
	return fmt.Sprintf(`kafkaavro: duplicate topic [%s]`, e.Topic)
}
