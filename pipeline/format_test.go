package pipeline

import (
	"strings"
	"testing"

	"spritebot/marker"
	"spritebot/model"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"abcdefghij", 4, "abcd... (truncated 6 chars)"},
		{"ééééé", 2, "éé... (truncated 3 chars)"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestStripDataURIs(t *testing.T) {
	in := "before data:image/png;base64,iVBORw0KGgo= middle data:image/gif;base64,R0lGOD after"
	want := "before [EMBEDDED] middle [EMBEDDED] after"
	if got := StripDataURIs(in); got != want {
		t.Errorf("StripDataURIs = %q, want %q", got, want)
	}
	if got := StripDataURIs("no images here"); got != "no images here" {
		t.Errorf("unchanged text altered: %q", got)
	}
}

func TestFlattenMetadataPrecedence(t *testing.T) {
	res := model.ToolCallResult{
		ImageURL: "https://a/img.png",
		Metadata: map[string]any{
			"imageUrl": "https://b/override.png",
			"type":     "sprite",
			"metadata": map[string]any{"type": "animation", "frames": 8.0},
		},
	}
	flat := flattenMetadata(res)

	if flat["imageUrl"] != "https://b/override.png" {
		t.Errorf("imageUrl = %v", flat["imageUrl"])
	}
	if flat["type"] != "animation" {
		t.Errorf("nested keys should win: type = %v", flat["type"])
	}
	if flat["frames"] != 8.0 {
		t.Errorf("frames = %v", flat["frames"])
	}
	if _, ok := flat["metadata"]; ok {
		t.Error("nested metadata key leaked into flat object")
	}
}

func TestFlattenMetadataImageOnly(t *testing.T) {
	flat := flattenMetadata(model.ToolCallResult{ImageURL: "https://x"})
	if len(flat) != 1 || flat["imageUrl"] != "https://x" {
		t.Errorf("flat = %v", flat)
	}
}

func TestMarkerKind(t *testing.T) {
	if markerKind("generate_image") != marker.KindGeneratedImage {
		t.Error("generate_image should use the generated-image marker")
	}
	for _, tool := range []string{"generate_sprite", "animate_sprite", "generate_image_pixflux"} {
		if markerKind(tool) != marker.KindSprite {
			t.Errorf("%s should use the sprite marker", tool)
		}
	}
}

func TestHistoryToolContent(t *testing.T) {
	long := strings.Repeat("a", 1200)
	tests := []struct {
		name string
		res  model.ToolCallResult
		want string
	}{
		{"content", model.ToolCallResult{Success: true, Content: "ok"}, "ok"},
		{"error", model.FailedResult("boom"), "boom"},
		{"empty", model.ToolCallResult{Success: true}, noResult},
		{"long", model.ToolCallResult{Content: long}, strings.Repeat("a", 1000) + "... (truncated 200 chars)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := historyToolContent(tt.res); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHistoryToolResultDoesNotAlias(t *testing.T) {
	res := model.ToolCallResult{Success: true, Content: strings.Repeat("b", 1500)}
	stored := historyToolResult(res)
	if len(res.Content) != 1500 {
		t.Error("original result was modified")
	}
	if !strings.HasSuffix(stored.Content, "(truncated 500 chars)") {
		t.Errorf("stored content not bounded: ...%s", stored.Content[len(stored.Content)-30:])
	}
}

func TestRedactArgs(t *testing.T) {
	args := map[string]any{
		"prompt": "knight",
		"image":  "data:image/png;base64," + strings.Repeat("A", 5000),
		"notes":  strings.Repeat("n", 300),
		"size":   32,
	}
	out := redactArgs(args)
	if out["prompt"] != "knight" || out["size"] != 32 {
		t.Errorf("small values changed: %v", out)
	}
	if s := out["image"].(string); !strings.HasPrefix(s, "<data uri") {
		t.Errorf("image = %q", s)
	}
	if s := out["notes"].(string); len(s) > 100 {
		t.Errorf("notes not shortened: %d bytes", len(s))
	}
}
