package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Handler executes a tool invocation. Arguments arrive as the raw JSON the
// model produced; handlers do their own decoding and validation.
type Handler func(ctx context.Context, input json.RawMessage) (*ToolResult, error)

// Tool describes an executable capability exposed to the model.
type Tool struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	Categories           []string        `json:"categories,omitempty"`
	RequiresConfirmation bool            `json:"requires_confirmation,omitempty"`
	InputSchema          json.RawMessage `json:"input_schema,omitempty"`
	Handler              Handler         `json:"-"`
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ParseArguments unmarshals tool input into a map for validation and access.
func ParseArguments(raw json.RawMessage) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// StringArg extracts a string argument from parsed tool input.
func StringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntArg extracts an integer argument from parsed tool input.
func IntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// BoolArg extracts a boolean argument from parsed tool input.
func BoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
