package kafkaavro

import (
	"fmt"

	"github.com/riferrei/srclient"
	"github.com/tryfix/errors"
)

// SchemaInfo is the registry's view of a single schema version.
type SchemaInfo struct {
	ID     uint32
	Schema string
	Type   srclient.SchemaType
}

// RegistryClient is the subset of the Confluent schema registry API this
// library consumes: fetch a schema by its numeric id and register (or look
// up) a schema under a subject.
type RegistryClient interface {
	FetchSchema(id uint32) (SchemaInfo, error)
	RegisterSchema(subject string, schema string, schemaType srclient.SchemaType) (SchemaInfo, error)
}

type srRegistry struct {
	client srclient.ISchemaRegistryClient
}

// NewRegistryClient returns a RegistryClient backed by srclient talking to
// the registry at the given url.
func NewRegistryClient(url string) RegistryClient {
	return &srRegistry{client: srclient.CreateSchemaRegistryClient(url)}
}

// WrapRegistryClient adapts an existing srclient client, typically
// srclient.CreateMockSchemaRegistryClient in tests.
func WrapRegistryClient(client srclient.ISchemaRegistryClient) RegistryClient {
	return &srRegistry{client: client}
}

func (r *srRegistry) FetchSchema(id uint32) (SchemaInfo, error) {
	schema, err := r.client.GetSchema(int(id))
	if err != nil {
		return SchemaInfo{}, errors.WithPrevious(err, fmt.Sprintf(`schema fetch failed for id [%d]`, id))
	}

	return schemaInfoOf(schema), nil
}

func (r *srRegistry) RegisterSchema(subject string, schema string, schemaType srclient.SchemaType) (SchemaInfo, error) {
	registered, err := r.client.CreateSchema(subject, schema, schemaType)
	if err != nil {
		return SchemaInfo{}, errors.WithPrevious(err, fmt.Sprintf(`schema register failed for subject [%s]`, subject))
	}

	return schemaInfoOf(registered), nil
}

func schemaInfoOf(s *srclient.Schema) SchemaInfo {
	// the registry omits the type field for AVRO schemas
	schemaType := srclient.Avro
	if s.SchemaType() != nil {
		schemaType = *s.SchemaType()
	}

	return SchemaInfo{
		ID:     uint32(s.ID()),
		Schema: s.Schema(),
		Type:   schemaType,
	}
}
