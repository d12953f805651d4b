package spec

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "regexp"
    "strings"

    openapi2 "github.com/getkin/kin-openapi/openapi2"
    "github.com/getkin/kin-openapi/openapi2conv"
    "github.com/getkin/kin-openapi/openapi3"
)

// ErrorCode categorizes export errors for clearer handling and messaging.
type ErrorCode string

const (
    InputError      ErrorCode = "InputError"
    ParseError      ErrorCode = "ParseError"
    ValidationError ErrorCode = "ValidationError"
    ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
    Code        ErrorCode
    Message     string
    Location    string // file path or document key
    JSONPointer string // e.g. "#/paths/~1pets/get"
    Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Settings configures export behavior.
type Settings struct {
    // Title and Version fill the info object, which captured documents lack.
    Title   string
    Version string
    // Location is reported in errors.
    Location string
    // Validate runs openapi3 validation on the converted document.
    Validate bool
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
    return Settings{
        Title:    "Observed API",
        Version:  "0.0.0",
        Validate: true,
    }
}

// Option mutates Settings.
type Option func(*Settings)

func WithTitle(title string) Option       { return func(s *Settings) { s.Title = title } }
func WithVersion(version string) Option   { return func(s *Settings) { s.Version = version } }
func WithLocation(location string) Option { return func(s *Settings) { s.Location = location } }
func WithValidation(on bool) Option       { return func(s *Settings) { s.Validate = on } }

// LoadFile reads a captured document from disk.
func LoadFile(path string) (*Document, error) {
    if strings.TrimSpace(path) == "" {
        return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
    }
    abs, err := filepath.Abs(path)
    if err != nil {
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
    }
    raw, err := os.ReadFile(abs)
    if err != nil {
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
    }
    return Parse(raw, abs)
}

// Parse decodes a captured document and checks its version marker.
func Parse(raw []byte, location string) (*Document, error) {
    var doc Document
    if err := json.Unmarshal(raw, &doc); err != nil {
        return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse spec: %v", err), Location: location, Cause: err}
    }
    if doc.Swagger != SwaggerVersion {
        return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("spec: unsupported version %q (expected 'swagger: 2.0')", doc.Swagger), Location: location}
    }
    if doc.Paths == nil {
        doc.Paths = map[string]PathItem{}
    }
    return &doc, nil
}

// ToOpenAPI3 converts a captured Swagger v2 document to OpenAPI v3 via
// kin-openapi openapi2conv, then validates the result.
func ToOpenAPI3(ctx context.Context, doc *Document, opts ...Option) (*openapi3.T, error) {
    settings := DefaultSettings()
    for _, opt := range opts {
        opt(&settings)
    }
    if doc == nil {
        return nil, &SpecError{Code: InputError, Message: "spec: nil document", Location: settings.Location}
    }

    raw, err := json.Marshal(doc)
    if err != nil {
        return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("encode spec: %v", err), Location: settings.Location, Cause: err}
    }
    var generic map[string]any
    if err := json.Unmarshal(raw, &generic); err != nil {
        return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("decode spec: %v", err), Location: settings.Location, Cause: err}
    }
    // Preprocess captured constructs kin-openapi cannot represent.
    if preprocessV2ForConversion(generic, settings.Title, settings.Version) {
        if raw, err = json.Marshal(generic); err != nil {
            return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("encode spec: %v", err), Location: settings.Location, Cause: err}
        }
    }

    v3doc, err := convertV2ToV3(raw)
    if err != nil {
        return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: settings.Location, Cause: err}
    }
    if settings.Validate {
        // Examples are first observations and may predate later widening.
        if err := v3doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
            return nil, mapValidateOrParseErr(err, settings.Location)
        }
    }
    return v3doc, nil
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
    // For kin-openapi v0.116.0, convert by unmarshalling to v2 then calling ToV3.
    var v2 openapi2.T
    if err := json.Unmarshal(data, &v2); err != nil {
        return nil, err
    }
    return openapi2conv.ToV3(&v2)
}

func mapValidateOrParseErr(err error, location string) error {
    // Try to extract JSON Pointer where available.
    pointer := extractJSONPointer(err)
    code := ValidationError
    // Heuristics: some loader errors are parse errors.
    if strings.Contains(strings.ToLower(err.Error()), "parse") || strings.Contains(strings.ToLower(err.Error()), "invalid character") {
        code = ParseError
    }
    return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
    if err == nil {
        return ""
    }
    // Unwrap MultiError and take the first for brevity.
    if me, ok := err.(openapi3.MultiError); ok {
        if len(me) > 0 {
            return extractJSONPointer(me[0])
        }
    }
    var se *openapi3.SchemaError
    if errors.As(err, &se) {
        if parts := se.JSONPointer(); len(parts) > 0 {
            return "#/" + strings.Join(parts, "/")
        }
        if se.SchemaField != "" {
            return se.SchemaField
        }
    }
    msg := err.Error()
    if m := jsonPtrRe.FindString(msg); m != "" {
        return m
    }
    return ""
}
