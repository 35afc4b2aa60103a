package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FormatCatalog renders descriptors as the plain-text tool listing embedded
// in planner prompts:
//
//	- generate_sprite: Generate a pixel art sprite
//	  Input: {"type":"object",...}
//
// Blocks are separated by a blank line.
func FormatCatalog(descs []ToolDescriptor) string {
	blocks := make([]string, 0, len(descs))
	for _, d := range descs {
		blocks = append(blocks, fmt.Sprintf("- %s: %s\n  Input: %s", d.Name, d.Description, compactSchema(d.InputSchema)))
	}
	return strings.Join(blocks, "\n\n")
}

// compactSchema strips insignificant whitespace from a schema.
func compactSchema(schema json.RawMessage) string {
	if len(schema) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, schema); err != nil {
		return string(schema)
	}
	return buf.String()
}
