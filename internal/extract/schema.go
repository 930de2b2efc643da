package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cortexlib/glean/internal/types"
)

// resultSchema is the structural contract for a chunk extraction response:
// all five required keys present and list-typed, 1..3 domains.
const resultSchema = `{
	"type": "object",
	"required": ["domains", "principles", "rules", "claims", "warnings"],
	"properties": {
		"domains": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 1,
			"maxItems": 3
		},
		"principles": {"$ref": "#/$defs/itemList"},
		"rules":      {"$ref": "#/$defs/itemList"},
		"claims":     {"$ref": "#/$defs/itemList"},
		"warnings":   {"$ref": "#/$defs/itemList"}
	},
	"$defs": {
		"itemList": {
			"type": "array",
			"items": {
				"anyOf": [
					{"type": "string"},
					{
						"type": "object",
						"required": ["text"],
						"properties": {"text": {"type": "string"}}
					}
				]
			}
		}
	}
}`

var compiledResultSchema = jsonschema.MustCompileString("extraction_result.json", resultSchema)

// ValidationError marks a structural schema violation, which triggers a
// retry with a stricter prompt.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "structural validation failed: " + e.Reason
}

// ParseResult parses and structurally validates a raw model response.
// Unknown top-level keys are preserved in the result's Extra bag; nothing
// unvalidated flows downstream.
func ParseResult(raw string) (*types.ExtractionResult, error) {
	jsonText := extractJSON(raw)
	if jsonText == "" {
		return nil, &ValidationError{Reason: "no JSON object in response"}
	}

	var doc any
	if err := json.Unmarshal([]byte(jsonText), &doc); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if err := compiledResultSchema.Validate(doc); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &fields); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed JSON object: %v", err)}
	}

	result := &types.ExtractionResult{}
	if err := json.Unmarshal(fields["domains"], &result.Domains); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("bad domains: %v", err)}
	}

	for key, dst := range map[string]*[]types.Item{
		"principles": &result.Principles,
		"rules":      &result.Rules,
		"claims":     &result.Claims,
		"warnings":   &result.Warnings,
	} {
		items, err := decodeItems(fields[key])
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("bad %s: %v", key, err)}
		}
		*dst = items
	}

	for key, raw := range fields {
		switch key {
		case "domains", "principles", "rules", "claims", "warnings":
		default:
			if result.Extra == nil {
				result.Extra = make(map[string]json.RawMessage)
			}
			result.Extra[key] = raw
		}
	}

	return result, nil
}

// decodeItems accepts both bare strings and {"text": ..., ...} objects;
// extra object fields land in the item's Extra bag.
func decodeItems(raw json.RawMessage) ([]types.Item, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	items := make([]types.Item, 0, len(entries))
	for _, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			items = append(items, types.Item{Text: s})
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(entry, &obj); err != nil {
			return nil, err
		}
		var item types.Item
		if err := json.Unmarshal(obj["text"], &item.Text); err != nil {
			return nil, fmt.Errorf("item missing text field")
		}
		for k, v := range obj {
			if k == "text" {
				continue
			}
			if item.Extra == nil {
				item.Extra = make(map[string]json.RawMessage)
			}
			item.Extra[k] = v
		}
		items = append(items, item)
	}
	return items, nil
}

// extractJSON pulls the JSON object out of a model response, tolerating
// markdown code fences and surrounding prose.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if start := strings.Index(raw, "```"); start >= 0 {
		rest := raw[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			raw = rest[:end]
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
