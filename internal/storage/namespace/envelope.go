package namespace

import (
	_ "embed"

	"github.com/formai/engine/internal/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed record.schema.json
var envelopeDocument []byte

// EnvelopeResource names the record envelope document in record shapes
const EnvelopeResource = "record.schema.json"

var envelopeCompiler = schema.NewCompiler()

func compileEnvelope() (*jsonschema.Schema, error) {
	return envelopeCompiler.Compile(EnvelopeResource, envelopeDocument, "")
}

// checkEnvelope validates an encoded record against the envelope
func checkEnvelope(envelope *jsonschema.Schema, encoded []byte) error {
	if location, err := schema.ValidateJSON(envelope, encoded); err != nil {
		return &InvalidRecordError{Path: location, Reason: err.Error()}
	}
	return nil
}
