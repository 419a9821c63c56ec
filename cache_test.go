package kafkaavro

import (
	"errors"
	"testing"

	"github.com/riferrei/srclient"
	"github.com/tryfix/log"
)

func TestSchemaCache_ResolveCachesEntry(t *testing.T) {
	registry := newFakeRegistry()
	registry.setSchema(7, userFeedbackSchema, srclient.Avro)
	cache := NewSchemaCache(registry, log.NewNoopLogger())

	for i := 0; i < 3; i++ {
		entry, err := cache.Resolve(7)
		if err != nil {
			t.Fatal(err)
		}
		if entry.ID != 7 || entry.Avro == nil {
			t.Fatalf(`need parsed entry for schema id 7, have %+v`, entry)
		}
	}

	if registry.fetchCount() != 1 {
		t.Errorf(`need exactly one registry fetch, have %d`, registry.fetchCount())
	}
}

func TestSchemaCache_FetchFailureNotCached(t *testing.T) {
	registry := newFakeRegistry()
	registry.fetchErr = errors.New(`registry unavailable`)
	cache := NewSchemaCache(registry, log.NewNoopLogger())

	if _, err := cache.Resolve(7); err == nil {
		t.Fatal(`need error when the registry is unavailable`)
	}

	registry.fetchErr = nil
	registry.setSchema(7, userFeedbackSchema, srclient.Avro)

	entry, err := cache.Resolve(7)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Raw != userFeedbackSchema {
		t.Errorf(`need schema fetched after recovery, have %s`, entry.Raw)
	}
	if registry.fetchCount() != 2 {
		t.Errorf(`need 2 fetches, have %d`, registry.fetchCount())
	}
}

func TestSchemaCache_RegisterSchemas(t *testing.T) {
	registry := newFakeRegistry()
	registry.nextID = 11
	cache := NewSchemaCache(registry, log.NewNoopLogger())

	if err := cache.RegisterSchemas(&UserFeedback{}, &OrderCreated{}); err != nil {
		t.Fatal(err)
	}

	if _, ok := registry.subjects[`user-feedback-value`]; !ok {
		t.Errorf(`need subject user-feedback-value, have %v`, registry.subjects)
	}
	if _, ok := registry.subjects[`order-created-value`]; !ok {
		t.Errorf(`need subject order-created-value, have %v`, registry.subjects)
	}

	id, ok := cache.idFor(`com.example.events.UserFeedback`)
	if !ok || id != 11 {
		t.Errorf(`need schema id 11 for UserFeedback, have %d (%t)`, id, ok)
	}

	entry, err := cache.Resolve(11)
	if err != nil {
		t.Fatal(err)
	}
	if registry.fetchCount() != 0 {
		t.Errorf(`registration must prime the cache, have %d fetches`, registry.fetchCount())
	}
	if entry.Avro == nil {
		t.Error(`need parsed avro schema on registered entry`)
	}
}

func TestSchemaCache_RegisterSchemasInvalid(t *testing.T) {
	registry := newFakeRegistry()
	cache := NewSchemaCache(registry, log.NewNoopLogger())

	if err := cache.RegisterSchemas(&ProtoValue{}); err == nil {
		t.Fatal(`need error for events without an avro record schema`)
	}
}
