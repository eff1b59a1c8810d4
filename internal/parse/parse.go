// Package parse reads dataset files written as JSON or YAML and hands them
// on as JSON.
package parse

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents supported input formats
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension, falling back to
// DetectFormat for anything else.
func FormatOf(filename string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return DetectFormat(data)
}

// DetectFormat attempts to determine the format of the input data
// Returns an error if the format cannot be reliably determined
func DetectFormat(data []byte) (Format, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", fmt.Errorf("input is empty")
	}

	// Check for JSON - validate it's actually valid JSON
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var js json.RawMessage
		if err := json.Unmarshal(data, &js); err == nil {
			return FormatJSON, nil
		}
		// If it starts with { but isn't valid JSON, that's an error
		return "", fmt.Errorf("input appears to be JSON but is invalid")
	}

	// YAML parser is very permissive - plain text is valid YAML.
	// Only treat as YAML if it is a mapping.
	var probe any
	if err := yaml.Unmarshal(data, &probe); err == nil {
		if _, ok := probe.(map[string]any); ok {
			return FormatYAML, nil
		}
	}
	return "", fmt.Errorf("input is neither a JSON nor a YAML document")
}

// ToJSON returns data as JSON. JSON input is returned unchanged.
func ToJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("YAML document has no JSON form: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// File converts the content of filename to JSON, picking the format with
// FormatOf.
func File(filename string, data []byte) ([]byte, error) {
	format, err := FormatOf(filename, data)
	if err != nil {
		return nil, err
	}
	return ToJSON(data, format)
}
