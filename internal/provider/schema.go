package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema describes the shape a structured completion must satisfy. The
// raw document doubles as the format instruction embedded into prompts.
type Schema struct {
	raw      string
	compiled *gojsonschema.Schema
}

// NewSchema compiles a JSON schema document.
func NewSchema(raw string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{raw: raw, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level schema literals.
func MustSchema(raw string) *Schema {
	s, err := NewSchema(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Instructions returns the format instruction block appended to system
// prompts so the model knows the exact output contract.
func (s *Schema) Instructions() string {
	return "Respond with a single JSON document only, no markdown fences and no prose, matching this JSON schema:\n" + s.raw
}

// Validate checks doc against the schema and returns the collected
// violations, if any.
func (s *Schema) Validate(doc string) error {
	result, err := s.compiled.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("validate response: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("schema violations: %s", strings.Join(msgs, "; "))
}

// ExtractJSON strips markdown code fences that models wrap around JSON
// payloads despite instructions.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// decode unmarshals a validated document into out.
func decode(doc string, out any) error {
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
