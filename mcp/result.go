package mcp

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/h2non/filetype"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"spritebot/model"
)

// imageURLKeys are checked in order; a later key overrides an earlier one.
var imageURLKeys = []string{"imageUrl", "spriteSheetUrl", "animationUrl"}

// ExtractResult converts a raw MCP tool result into a ToolCallResult.
//
// Text items are concatenated into Content. A text item that is a JSON
// object becomes Metadata (the last one wins) and supplies ImageURL. Image
// items become data URIs in ImageURL.
func ExtractResult(res *mcptypes.CallToolResult) model.ToolCallResult {
	if res == nil {
		return model.FailedResult("Invalid response from MCP server")
	}

	var content strings.Builder
	var imageURL string
	var metadata map[string]any

	for _, item := range res.Content {
		switch c := item.(type) {
		case mcptypes.TextContent:
			content.WriteString(c.Text)
			imageURL, metadata = parseTextMetadata(c.Text, imageURL, metadata)
		case *mcptypes.TextContent:
			content.WriteString(c.Text)
			imageURL, metadata = parseTextMetadata(c.Text, imageURL, metadata)
		case mcptypes.ImageContent:
			imageURL = dataURI(c.Data, c.MIMEType)
		case *mcptypes.ImageContent:
			imageURL = dataURI(c.Data, c.MIMEType)
		}
	}

	if res.IsError {
		msg := strings.TrimSpace(content.String())
		if msg == "" {
			msg = "tool reported an error"
		}
		return model.ToolCallResult{Success: false, Content: content.String(), Error: msg}
	}

	return model.ToolCallResult{
		Success:  true,
		Content:  content.String(),
		ImageURL: imageURL,
		Metadata: metadata,
	}
}

func parseTextMetadata(text, imageURL string, metadata map[string]any) (string, map[string]any) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return imageURL, metadata
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return imageURL, metadata
	}
	for _, key := range imageURLKeys {
		if s, ok := parsed[key].(string); ok && s != "" {
			imageURL = s
		}
	}
	return imageURL, parsed
}

// dataURI wraps base64 image data. The MIME type is sniffed from the bytes
// when the provider does not report one.
func dataURI(data, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/png"
		head := data
		if len(head) > 64 {
			head = head[:64]
		}
		// 64 base64 chars decode to 48 bytes, enough for every magic number.
		if raw, err := base64.StdEncoding.DecodeString(head[:len(head)-len(head)%4]); err == nil {
			if kind, err := filetype.Match(raw); err == nil && kind != filetype.Unknown {
				mimeType = kind.MIME.Value
			}
		}
	}
	return "data:" + mimeType + ";base64," + data
}
