package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Mechanism names the structured-output strategy the normalizer selected.
type Mechanism string

const (
	// MechanismNative: the backend enforces the schema itself.
	MechanismNative Mechanism = "native"
	// MechanismJSONMode: the backend guarantees JSON, the schema travels in
	// the system message.
	MechanismJSONMode Mechanism = "json_mode"
	// MechanismPrompt: plain text backend, schema and format both requested
	// through prompt instructions.
	MechanismPrompt Mechanism = "prompt"
)

// StructuredResponse is the result of a schema-constrained generation.
type StructuredResponse struct {
	Raw        string
	Value      map[string]any
	TokensUsed int
	Mechanism  Mechanism
}

// InvalidOutputError reports model output that could not be parsed or did not
// satisfy the schema. Callers running an iterative loop typically feed the
// Reason back to the model rather than aborting.
type InvalidOutputError struct {
	Mechanism Mechanism
	Raw       string
	Reason    string
	Cause     error
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("invalid structured output (%s): %s", e.Mechanism, e.Reason)
}

func (e *InvalidOutputError) Unwrap() error { return e.Cause }

// Normalizer produces schema-conforming output from any Provider by picking
// the strongest mechanism its capabilities allow and repairing what comes
// back.
type Normalizer struct {
	provider Provider
}

// NewNormalizer binds a normalizer to a provider.
func NewNormalizer(p Provider) *Normalizer {
	return &Normalizer{provider: p}
}

// GenerateStructured runs one schema-constrained chat turn. Transport and
// generation failures return the provider's error unchanged; output that is
// syntactically or structurally wrong returns a *InvalidOutputError alongside
// the partial response so callers can retry with feedback.
func (n *Normalizer) GenerateStructured(ctx context.Context, model string, messages []ChatMessage, schema Schema, temperature float64) (*StructuredResponse, error) {
	caps := n.provider.Capabilities()

	var (
		resp      *Response
		err       error
		mechanism Mechanism
	)
	switch {
	case caps.StrictSchema:
		mechanism = MechanismNative
		schema.Strict = true
		resp, err = n.provider.ChatWithOptions(ctx, model, messages, ChatOptions{
			Temperature: &temperature,
			Format:      &schema,
		})
	case caps.JSONMode:
		mechanism = MechanismJSONMode
		schema.Strict = false
		resp, err = n.provider.ChatWithOptions(ctx, model, injectSchemaMessage(messages, schema), ChatOptions{
			Temperature: &temperature,
			Format:      &schema,
		})
	default:
		mechanism = MechanismPrompt
		resp, err = n.provider.Chat(ctx, model, injectSchemaMessage(messages, schema), temperature)
	}
	if err != nil {
		return nil, err
	}

	out := &StructuredResponse{
		Raw:        resp.Content,
		TokensUsed: resp.TokensUsed,
		Mechanism:  mechanism,
	}

	candidate := ExtractJSON(resp.Content)
	if candidate == "" {
		return out, &InvalidOutputError{Mechanism: mechanism, Raw: resp.Content, Reason: "no JSON object found in output"}
	}
	var value map[string]any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return out, &InvalidOutputError{Mechanism: mechanism, Raw: resp.Content, Reason: "output is not valid JSON: " + err.Error(), Cause: err}
	}
	if err := validateAgainst(schema.Schema, value); err != nil {
		out.Value = value
		return out, &InvalidOutputError{Mechanism: mechanism, Raw: resp.Content, Reason: "output does not satisfy schema: " + err.Error(), Cause: err}
	}

	out.Value = value
	return out, nil
}

// injectSchemaMessage prepends (or extends) the system message with the
// response-format contract.
func injectSchemaMessage(messages []ChatMessage, schema Schema) []ChatMessage {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. ")
	b.WriteString("Do not wrap the object in markdown fences. ")
	b.WriteString("The object must conform to this JSON Schema:\n")
	b.Write(schema.Schema)

	out := make([]ChatMessage, 0, len(messages)+1)
	injected := false
	for _, m := range messages {
		if m.Role == RoleSystem && !injected {
			out = append(out, SystemMessage(m.Content+"\n\n"+b.String()))
			injected = true
			continue
		}
		out = append(out, m)
	}
	if !injected {
		out = append([]ChatMessage{SystemMessage(b.String())}, out...)
	}
	return out
}

// ExtractJSON pulls the outermost JSON object out of model output, stripping
// markdown fences and any prose around it. Returns "" when no object is
// present.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)

	// Strip a fenced block if the output is wrapped in one.
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			// Drop the language tag line.
			if tag := strings.TrimSpace(rest[:nl]); tag == "" || tag == "json" {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end != -1 {
			s = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}

	// Walk to the matching close brace, ignoring braces inside strings.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// validateAgainst checks a decoded value against a raw JSON Schema document.
func validateAgainst(raw json.RawMessage, value any) error {
	if len(raw) == 0 {
		return nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("schema does not parse: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("schema does not resolve: %w", err)
	}
	return resolved.Validate(value)
}
