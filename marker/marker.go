// Package marker embeds machine-readable JSON payloads in assistant text.
//
// A reply is prose optionally followed by a token and a JSON object:
//
//	Here is your knight!
//
//	🖼️SPRITE_RESULT🖼️{"imageUrl":"https://...","spriteId":"abc"}
//
// Chat surfaces call Decode to split the reply into the prose shown to the
// user and the payload rendered as rich media.
package marker

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies the payload flavor.
type Kind string

const (
	KindSprite         Kind = "sprite"
	KindGeneratedImage Kind = "generated-image"
)

const (
	SpriteToken         = "🖼️SPRITE_RESULT🖼️"
	GeneratedImageToken = "🖼️XAI_IMAGE_RESULT🖼️"
)

// Token returns the marker token for kind. Unknown kinds use the sprite token.
func Token(kind Kind) string {
	if kind == KindGeneratedImage {
		return GeneratedImageToken
	}
	return SpriteToken
}

// KindOf returns the kind a token stands for.
func KindOf(token string) (Kind, bool) {
	switch token {
	case SpriteToken:
		return KindSprite, true
	case GeneratedImageToken:
		return KindGeneratedImage, true
	}
	return "", false
}

// Payload is a decoded marker object.
type Payload struct {
	Kind Kind
	JSON map[string]any
}

// Decoded is the result of Decode.
type Decoded struct {
	Prose   string
	Payload *Payload
}

// Encode serializes payload and returns the suffix to append to prose.
func Encode(kind Kind, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return "\n\n" + Token(kind) + tokenEscaper.Replace(string(data)), nil
}

// tokenEscaper rewrites marker tokens inside encoded JSON strings with one
// letter as a \u escape, so the appended token stays the last one in the
// text while the JSON still decodes to the original value.
var tokenEscaper = strings.NewReplacer(
	SpriteToken, escapeToken(SpriteToken),
	GeneratedImageToken, escapeToken(GeneratedImageToken),
)

func escapeToken(token string) string {
	i := strings.IndexFunc(token, func(r rune) bool {
		return r < utf8.RuneSelf && unicode.IsLetter(r)
	})
	return token[:i] + fmt.Sprintf(`\u%04x`, token[i]) + token[i+1:]
}

// Decode splits text into prose and the payload of the last marker. If no
// marker is present, or the object after it is not valid JSON, Payload is
// nil. Prose never contains a marker or anything after the first one.
func Decode(text string) Decoded {
	out := Decoded{Prose: StripProse(text)}

	idx, token := lastMarker(text)
	if idx < 0 {
		return out
	}
	kind, _ := KindOf(token)

	rest := strings.TrimLeftFunc(text[idx+len(token):], unicode.IsSpace)
	span, ok := ExtractObject(rest)
	if !ok {
		return out
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil || obj == nil {
		return out
	}
	out.Payload = &Payload{Kind: kind, JSON: obj}
	return out
}

// StripProse removes everything from the first marker onward and trims
// surrounding whitespace.
func StripProse(text string) string {
	if idx, _ := firstMarker(text); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// HasMarker reports whether text contains any marker token.
func HasMarker(text string) bool {
	idx, _ := firstMarker(text)
	return idx >= 0
}

// ExtractObject returns the leading balanced JSON object of s. Braces inside
// string literals are ignored and backslash escapes inside strings are
// honored. It returns false if s does not start with '{' or the object is
// never closed.
func ExtractObject(s string) (string, bool) {
	if !strings.HasPrefix(s, "{") {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

var tokens = []string{SpriteToken, GeneratedImageToken}

func firstMarker(text string) (int, string) {
	best, which := -1, ""
	for _, tok := range tokens {
		if i := strings.Index(text, tok); i >= 0 && (best < 0 || i < best) {
			best, which = i, tok
		}
	}
	return best, which
}

func lastMarker(text string) (int, string) {
	best, which := -1, ""
	for _, tok := range tokens {
		if i := strings.LastIndex(text, tok); i > best {
			best, which = i, tok
		}
	}
	return best, which
}
