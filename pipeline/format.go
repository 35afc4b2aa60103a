package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"spritebot/marker"
	"spritebot/model"
)

const (
	toolHistoryBound      = 1000
	assistantHistoryBound = 2000

	// generatedImageTool is the only tool whose results render as a plain
	// image gallery rather than a sprite embed.
	generatedImageTool = "generate_image"

	redactAbove = 200
)

var dataURIPattern = regexp.MustCompile(`data:image/[a-zA-Z]+;base64,[A-Za-z0-9+/=]+`)

// truncate cuts s to max runes and notes how much was dropped.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return fmt.Sprintf("%s... (truncated %d chars)", string(r[:max]), len(r)-max)
}

// StripDataURIs replaces inline base64 images with a short placeholder.
func StripDataURIs(s string) string {
	return dataURIPattern.ReplaceAllString(s, embeddedPlaceholder)
}

// flattenMetadata merges the result's image URL and metadata into the
// single object carried by the marker. Later sources win: imageUrl, then
// top-level metadata keys (except "metadata"), then nested metadata keys.
func flattenMetadata(res model.ToolCallResult) map[string]any {
	flat := make(map[string]any)
	if res.ImageURL != "" {
		flat["imageUrl"] = res.ImageURL
	}
	for k, v := range res.Metadata {
		if k != "metadata" {
			flat[k] = v
		}
	}
	if nested, ok := res.Metadata["metadata"].(map[string]any); ok {
		for k, v := range nested {
			flat[k] = v
		}
	}
	return flat
}

// markerKind picks the marker for a tool's media.
func markerKind(tool string) marker.Kind {
	if tool == generatedImageTool {
		return marker.KindGeneratedImage
	}
	return marker.KindSprite
}

// historyToolResult is the tool result as stored in history, with
// content and error bounded.
func historyToolResult(res model.ToolCallResult) *model.ToolCallResult {
	stored := res
	stored.Content = truncate(res.Content, toolHistoryBound)
	if res.Error != "" {
		stored.Error = truncate(res.Error, toolHistoryBound)
	}
	return &stored
}

func historyToolContent(res model.ToolCallResult) string {
	switch {
	case res.Content != "":
		return truncate(res.Content, toolHistoryBound)
	case res.Error != "":
		return truncate(res.Error, toolHistoryBound)
	default:
		return noResult
	}
}

// redactArgs summarizes large or binary argument values for logging.
func redactArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		s, ok := v.(string)
		switch {
		case ok && strings.HasPrefix(s, "data:"):
			out[k] = fmt.Sprintf("<data uri, %d bytes>", len(s))
		case ok && len(s) > redactAbove:
			out[k] = fmt.Sprintf("%s... <%d bytes>", s[:40], len(s))
		default:
			out[k] = v
		}
	}
	return out
}
