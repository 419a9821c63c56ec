package kafkaavro

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/hamba/avro/v2"
	"github.com/olekukonko/tablewriter"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

type binding struct {
	topic   string
	factory EventFactory
	handler Handler
}

// Router derives the topics a handler receives from the handler's declared
// event alternatives and holds exactly one binding per topic. All bindings
// are registered before the consumer loop subscribes; a collision fails
// immediately with DuplicateTopicError.
type Router struct {
	bindings map[string]*binding
	topics   []string
}

func NewRouter() *Router {
	return &Router{bindings: make(map[string]*binding)}
}

// Bind registers handler for every event alternative. Each factory
// contributes one topic, derived from the kebab-cased AVRO record name of
// its schema: a record named UserFeedback binds the topic user-feedback.
func (r *Router) Bind(handler Handler, events ...EventFactory) error {
	if handler == nil {
		return errors.New(`handler is nil`)
	}
	if len(events) == 0 {
		return errors.New(`at least one event alternative is required`)
	}

	for _, factory := range events {
		schema, err := avroSchemaOf(factory())
		if err != nil {
			return err
		}

		if err := r.add(&binding{topic: toKebabCase(schema.Name()), factory: factory, handler: handler}); err != nil {
			return err
		}
	}

	return nil
}

// BindTopic registers handler for an explicitly named topic. Protobuf
// bindings use this form since their schema carries no AVRO record name.
func (r *Router) BindTopic(topic string, factory EventFactory, handler Handler) error {
	if topic == `` {
		return errors.New(`topic is empty`)
	}
	if handler == nil {
		return errors.New(`handler is nil`)
	}

	return r.add(&binding{topic: topic, factory: factory, handler: handler})
}

func (r *Router) add(b *binding) error {
	if _, ok := r.bindings[b.topic]; ok {
		return &DuplicateTopicError{Topic: b.topic}
	}

	r.bindings[b.topic] = b
	r.topics = append(r.topics, b.topic)

	return nil
}

// Topics returns the bound topics in registration order.
func (r *Router) Topics() []string {
	topics := make([]string, len(r.topics))
	copy(topics, r.topics)
	return topics
}

func (r *Router) binding(topic string) *binding {
	return r.bindings[topic]
}

// Print renders the binding table through the given logger.
func (r *Router) Print(logger log.Logger) {
	b := new(bytes.Buffer)
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{`Topic`, `Event`, `Kind`})

	for _, topic := range r.topics {
		event := r.bindings[topic].factory()
		kind := `avro`
		if _, ok := event.(*ProtoValue); ok {
			kind = `protobuf`
		}

		table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT})
		table.SetAutoFormatHeaders(true)
		table.Append([]string{topic, fmt.Sprintf(`%T`, event), kind})
	}
	table.Render()

	logger.Info(fmt.Sprintf("handler bindings\n%s", b.String()))
}

// avroSchemaOf parses the event's writer schema and asserts it names a
// record.
func avroSchemaOf(event Event) (*avro.RecordSchema, error) {
	schema, err := avro.Parse(event.Schema())
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`schema parse failed for %T`, event))
	}

	record, ok := schema.(*avro.RecordSchema)
	if !ok {
		return nil, errors.New(fmt.Sprintf(`schema of %T is not a record schema`, event))
	}

	return record, nil
}

// toKebabCase converts a record name to its topic form: lowercase words
// joined with hyphens. Acronym runs stay together, so HTTPServer becomes
// http-server.
func toKebabCase(name string) string {
	var sb strings.Builder
	runes := []rune(name)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := !unicode.IsUpper(runes[i-1]) && runes[i-1] != '-'
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				sb.WriteRune('-')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}

	return sb.String()
}
