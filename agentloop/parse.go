package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionFinish is the reserved action id that ends a run.
const ActionFinish = "finish"

// envelope is the decoded per-turn response.
type envelope struct {
	Thought     string
	Action      string
	ActionInput json.RawMessage
}

// actionSchema constrains each model turn. It travels through the
// structured-output normalizer, which degrades enforcement to whatever the
// provider supports.
var actionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"thought": {"type": "string"},
		"action": {"type": "string"},
		"action_input": {"type": "object"}
	},
	"required": ["thought", "action"]
}`)

// parseEnvelope extracts the thought/action/action_input triple from a
// decoded response value. The error message is written to be fed back to the
// model as a corrective observation.
func parseEnvelope(value map[string]any) (*envelope, error) {
	if value == nil {
		return nil, fmt.Errorf("response was not a JSON object; reply with {\"thought\": ..., \"action\": ..., \"action_input\": ...}")
	}

	thought, _ := value["thought"].(string)
	action, _ := value["action"].(string)
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, fmt.Errorf("the \"action\" field is missing or empty; set it to a tool id or \"finish\"")
	}

	var input json.RawMessage
	if raw, ok := value["action_input"]; ok && raw != nil {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("\"action_input\" could not be encoded: %v", err)
		}
		input = b
	} else {
		input = json.RawMessage(`{}`)
	}

	return &envelope{Thought: thought, Action: action, ActionInput: input}, nil
}

// finalAnswer extracts the answer from a finish action: the "answer" field
// of action_input when present, the thought otherwise.
func finalAnswer(env *envelope) string {
	var input struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(env.ActionInput, &input); err == nil && input.Answer != "" {
		return input.Answer
	}
	return env.Thought
}
