package spec

import (
    "encoding/json"
    "testing"
)

func decodeGeneric(t *testing.T, raw string) map[string]any {
    t.Helper()
    var doc map[string]any
    if err := json.Unmarshal([]byte(raw), &doc); err != nil { t.Fatalf("decode: %v", err) }
    return doc
}

func TestV2Compat_TypeSetsCollapse(t *testing.T) {
    t.Parallel()
    doc := decodeGeneric(t, `{
      "swagger": "2.0",
      "paths": {"/x": {"get": {
        "parameters": [],
        "responses": {"200": {"schema": {
          "type": "object",
          "properties": {
            "n":    {"type": ["integer", "number"]},
            "mix":  {"type": ["string", "boolean"], "enum": ["a"]},
            "opt":  {"type": ["string", "null"], "enum": ["a", "b"]},
            "gone": {"type": "null"},
            "cnt":  {"type": "integer", "enum": []}
          }
        }}}
      }}}
    }`)
    if !preprocessV2ForConversion(doc, "T", "1") { t.Fatalf("expected changes") }

    props := doc["paths"].(map[string]any)["/x"].(map[string]any)["get"].(map[string]any)["responses"].(map[string]any)["200"].(map[string]any)["schema"].(map[string]any)["properties"].(map[string]any)
    prop := func(name string) map[string]any { return props[name].(map[string]any) }

    if got := prop("n")["type"]; got != "number" { t.Errorf("integer+number: got %v", got) }
    if _, ok := prop("mix")["type"]; ok { t.Errorf("mixed kinds must drop type") }
    if _, ok := prop("mix")["enum"]; ok { t.Errorf("enum must be dropped without a string type") }
    if prop("opt")["type"] != "string" || prop("opt")["x-nullable"] != true { t.Errorf("nullable string: got %v", prop("opt")) }
    if _, ok := prop("opt")["enum"]; !ok { t.Errorf("string enum must be kept") }
    if _, ok := prop("gone")["type"]; ok || prop("gone")["x-nullable"] != true { t.Errorf("null only: got %v", prop("gone")) }
    if _, ok := prop("cnt")["enum"]; ok { t.Errorf("integer enum must be dropped") }
}

func TestV2Compat_InfoAndDescriptions(t *testing.T) {
    t.Parallel()
    doc := decodeGeneric(t, `{"swagger": "2.0", "paths": {"/x": {"get": {"responses": {"404": {"schema": {}}}}}}}`)
    preprocessV2ForConversion(doc, "Observed", "0.1.0")

    info := doc["info"].(map[string]any)
    if info["title"] != "Observed" || info["version"] != "0.1.0" { t.Fatalf("info not filled: %v", info) }
    r := doc["paths"].(map[string]any)["/x"].(map[string]any)["get"].(map[string]any)["responses"].(map[string]any)["404"].(map[string]any)
    if r["description"] != "Observed 404 response" { t.Fatalf("description: %v", r["description"]) }
}

func TestV2Compat_PathParameters(t *testing.T) {
    t.Parallel()
    doc := decodeGeneric(t, `{"swagger": "2.0", "paths": {
      "/users/{id}": {
        "get":  {"parameters": [{"name": "id", "in": "path", "type": ["string"]}], "responses": {"200": {}}},
        "post": {"parameters": [{"name": "id", "in": "query", "type": "integer"}], "responses": {}}
      }
    }}`)
    preprocessV2ForConversion(doc, "T", "1")

    item := doc["paths"].(map[string]any)["/users/{id}"].(map[string]any)
    get := item["get"].(map[string]any)["parameters"].([]any)[0].(map[string]any)
    if get["required"] != true || get["type"] != "string" { t.Fatalf("path param: %v", get) }

    post := item["post"].(map[string]any)
    params := post["parameters"].([]any)
    if len(params) != 2 { t.Fatalf("expected synthesized path param, got %v", params) }
    added := params[1].(map[string]any)
    if added["in"] != "path" || added["name"] != "id" || added["required"] != true { t.Fatalf("synthesized: %v", added) }
    if _, ok := post["responses"].(map[string]any)["default"]; !ok { t.Fatalf("expected default response") }
}

func TestV2Compat_QueryArrays(t *testing.T) {
    t.Parallel()
    doc := decodeGeneric(t, `{"swagger": "2.0", "paths": {"/x": {"get": {
      "parameters": [
        {"name": "tag", "in": "query", "type": ["string", "array"]},
        {"name": "page", "in": "query", "type": ["string", "integer"]}
      ],
      "responses": {"200": {}}
    }}}}`)
    preprocessV2ForConversion(doc, "T", "1")

    params := doc["paths"].(map[string]any)["/x"].(map[string]any)["get"].(map[string]any)["parameters"].([]any)
    tag := params[0].(map[string]any)
    if tag["type"] != "array" || tag["items"].(map[string]any)["type"] != "string" { t.Fatalf("tag: %v", tag) }
    page := params[1].(map[string]any)
    if page["type"] != "string" { t.Fatalf("page: %v", page) }
}
