package validation

import (
	"github.com/invopop/jsonschema"
)

// Argument types for the tools the bot knows how to call. Optional fields
// are pointers so that normalization keeps explicit zero values and drops
// only what was omitted.

type GenerateSpriteArgs struct {
	Prompt string  `json:"prompt" jsonschema:"minLength=1,maxLength=500"`
	Size   string  `json:"size" jsonschema:"enum=16x16,enum=32x32,enum=64x64,enum=128x128"`
	Style  *string `json:"style,omitempty"`
	Seed   *int    `json:"seed,omitempty"`
}

type RotateSpriteArgs struct {
	SpriteID string    `json:"spriteId" jsonschema:"minLength=1"`
	Angles   []float64 `json:"angles" jsonschema:"minItems=1,maxItems=16"`
}

type AnimateSpriteArgs struct {
	SpriteID string `json:"spriteId" jsonschema:"minLength=1"`
	FPS      *int   `json:"fps,omitempty" jsonschema:"minimum=1,maximum=60"`
	Loop     *bool  `json:"loop,omitempty"`
}

type GenerateImagePixfluxArgs struct {
	Description           string  `json:"description" jsonschema:"minLength=1,maxLength=500"`
	Width                 int     `json:"width" jsonschema:"minimum=32,maximum=400"`
	Height                int     `json:"height" jsonschema:"minimum=32,maximum=400"`
	Detail                *string `json:"detail,omitempty" jsonschema:"enum=low detail,enum=medium detail,enum=highly detailed"`
	Direction             *string `json:"direction,omitempty" jsonschema:"enum=north,enum=north-east,enum=east,enum=south-east,enum=south,enum=south-west,enum=west,enum=north-west"`
	Isometric             *bool   `json:"isometric,omitempty"`
	NoBackground          *bool   `json:"no_background,omitempty"`
	Outline               *string `json:"outline,omitempty" jsonschema:"enum=single color black outline,enum=single color outline,enum=selective outline,enum=lineless"`
	NegativeDescription   *string `json:"negative_description,omitempty"`
	Seed                  *int    `json:"seed,omitempty"`
	BackgroundRemovalTask *string `json:"background_removal_task,omitempty" jsonschema:"enum=remove_simple_background,enum=remove_complex_background"`
	InitImageStrength     *int    `json:"init_image_strength,omitempty" jsonschema:"minimum=1,maximum=999"`
}

type GetWeatherArgs struct {
	Location string `json:"location" jsonschema:"minLength=1"`
}

type GetCoolestCitiesArgs struct{}

type GetCurrentTimeArgs struct{}

type GreynoiseIPAddressArgs struct {
	IPAddress string `json:"ip_address"`
}

// The pattern contains commas, which the struct tag syntax cannot carry.
func (GreynoiseIPAddressArgs) JSONSchemaExtend(s *jsonschema.Schema) {
	if prop, ok := s.Properties.Get("ip_address"); ok {
		prop.Pattern = `^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`
	}
}

type GenerateImageArgs struct {
	Prompt         string  `json:"prompt" jsonschema:"minLength=1,maxLength=4000"`
	N              *int    `json:"n,omitempty" jsonschema:"minimum=1,maximum=10"`
	ResponseFormat *string `json:"response_format,omitempty" jsonschema:"enum=url,enum=b64_json"`
	User           *string `json:"user,omitempty"`
}

// builtinArgs maps tool names to their argument types.
var builtinArgs = map[string]any{
	"generate_sprite":        GenerateSpriteArgs{},
	"generate_image_pixflux": GenerateImagePixfluxArgs{},
	"rotate_sprite":          RotateSpriteArgs{},
	"animate_sprite":         AnimateSpriteArgs{},
	"get_weather":            GetWeatherArgs{},
	"get_coolest_cities":     GetCoolestCitiesArgs{},
	"get_current_time":       GetCurrentTimeArgs{},
	"greynoise_ip_address":   GreynoiseIPAddressArgs{},
	"generate_image":         GenerateImageArgs{},
}
