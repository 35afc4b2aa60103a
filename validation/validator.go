// Package validation checks planner-proposed tool arguments before any
// provider is invoked.
//
// Each tool has a JSON Schema. For the built-in tool set the schema is
// reflected from a typed Go argument struct, and valid arguments are
// normalized by decoding into that struct and encoding back, which drops
// unknown keys. Tools reported by providers at runtime can be registered
// with their declared schema instead.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/sahilm/fuzzy"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Result is the outcome of Validate. Data is only set when Valid is true;
// Error is only set when Valid is false.
type Result struct {
	Valid bool
	Data  map[string]any
	Error string
}

type toolSchema struct {
	argsType reflect.Type // nil for schema-only tools
	source   string
	compiled *jsonschema.Schema
}

// Validator holds the per-tool schemas. It is safe for concurrent use.
type Validator struct {
	mu    sync.RWMutex
	tools map[string]*toolSchema
}

// New returns a Validator preloaded with the built-in tool schemas.
func New() *Validator {
	v := &Validator{tools: make(map[string]*toolSchema)}
	for name, args := range builtinArgs {
		if err := v.Register(name, args); err != nil {
			panic(fmt.Sprintf("validation: builtin schema %s: %v", name, err))
		}
	}
	return v
}

// Register reflects args (a struct value) into a schema for tool.
func (v *Validator) Register(tool string, args any) error {
	reflector := invopop.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	schema := reflector.Reflect(args)
	source, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}

	compiled, err := jsonschema.CompileString(tool+".schema.json", string(source))
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.tools[tool] = &toolSchema{
		argsType: reflect.TypeOf(args),
		source:   string(source),
		compiled: compiled,
	}
	return nil
}

// RegisterSchema adds a tool validated against a raw JSON Schema, such as
// the input schema a provider declares. Tools that already have a typed
// schema keep it.
func (v *Validator) RegisterSchema(tool string, schema json.RawMessage) error {
	v.mu.RLock()
	_, exists := v.tools[tool]
	v.mu.RUnlock()
	if exists {
		return nil
	}

	compiled, err := jsonschema.CompileString(tool+".schema.json", string(schema))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", tool, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.tools[tool]; !exists {
		v.tools[tool] = &toolSchema{source: string(schema), compiled: compiled}
	}
	return nil
}

// Has reports whether tool has a schema.
func (v *Validator) Has(tool string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.tools[tool]
	return ok
}

// Names returns the known tool names, sorted.
func (v *Validator) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.tools))
	for name := range v.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the JSON Schema text for tool.
func (v *Validator) Schema(tool string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ts, ok := v.tools[tool]
	if !ok {
		return "", false
	}
	return ts.source, true
}

// Validate checks raw against the schema for tool and returns normalized
// arguments. It never panics.
func (v *Validator) Validate(tool string, raw map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Valid: false, Error: fmt.Sprintf("Validation error: %v", r)}
		}
	}()

	v.mu.RLock()
	ts, ok := v.tools[tool]
	v.mu.RUnlock()
	if !ok {
		return Result{Valid: false, Error: v.unknownTool(tool)}
	}

	if raw == nil {
		raw = map[string]any{}
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return Result{Valid: false, Error: "Validation failed: args: " + err.Error()}
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Result{Valid: false, Error: "Validation failed: args: " + err.Error()}
	}

	if err := ts.compiled.Validate(doc); err != nil {
		return Result{Valid: false, Error: "Validation failed: " + describe(err)}
	}

	data, err := normalize(ts, payload, doc)
	if err != nil {
		return Result{Valid: false, Error: "Validation failed: args: " + err.Error()}
	}
	return Result{Valid: true, Data: data}
}

func normalize(ts *toolSchema, payload []byte, doc any) (map[string]any, error) {
	if ts.argsType == nil {
		data, _ := doc.(map[string]any)
		if data == nil {
			data = map[string]any{}
		}
		return data, nil
	}

	typed := reflect.New(ts.argsType)
	if err := json.Unmarshal(payload, typed.Interface()); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(typed.Interface())
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	if err := json.Unmarshal(encoded, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (v *Validator) unknownTool(tool string) string {
	msg := "Unknown tool: " + tool
	if tool == "" {
		return msg
	}
	if matches := fuzzy.Find(tool, v.Names()); len(matches) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", matches[0].Str)
	}
	return msg
}

// describe flattens a schema validation error into "path: message" pairs.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var parts []string
	seen := map[string]bool{}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			part := fieldPath(e.InstanceLocation) + ": " + e.Message
			if !seen[part] {
				seen[part] = true
				parts = append(parts, part)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(parts, ", ")
}

// fieldPath turns a JSON pointer like "/angles/0" into "angles.0".
func fieldPath(pointer string) string {
	p := strings.TrimPrefix(pointer, "/")
	if p == "" {
		return "args"
	}
	return strings.ReplaceAll(p, "/", ".")
}
