package notification

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	pkgerrors "ldn/pkg/errors"
)

const schemaURL = "https://ldn.local/schemas/notification.json"

//go:embed schema/notification.json
var notificationSchema []byte

// SchemaValidator checks inbound payloads against the notification envelope
// schema before they are persisted.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

func NewSchemaValidator() (*SchemaValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(notificationSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to decode notification schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add notification schema: %w", err)
	}

	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile notification schema: %w", err)
	}

	return &SchemaValidator{schema: sch}, nil
}

func (v *SchemaValidator) Validate(raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.ErrPayloadMalformed.WithCause(err)
	}

	if err := v.schema.Validate(inst); err != nil {
		return pkgerrors.ErrPayloadMalformed.
			WithCause(err).
			WithDetail("message", "notification does not match the envelope schema")
	}

	return nil
}
