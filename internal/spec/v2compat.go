package spec

import (
    "fmt"
    "sort"
    "strings"
)

// preprocessV2ForConversion rewrites a captured Swagger v2 document (decoded into
// generic maps) so kin-openapi can convert and validate it:
// - type sets become a single type, or no type when several non-null kinds were
//   seen; a null member becomes x-nullable
// - info gets a title and version
// - path parameters are marked required, and templated paths whose id was only
//   ever seen in the query get a path parameter
// - responses get a description
// - widened query parameters become string arrays
//
// It reports whether anything was changed.
func preprocessV2ForConversion(doc map[string]any, title, version string) bool {
    modified := false

    info, _ := doc["info"].(map[string]any)
    if info == nil {
        info = map[string]any{}
        doc["info"] = info
        modified = true
    }
    if asString(info["title"]) == "" {
        info["title"] = title
        modified = true
    }
    if asString(info["version"]) == "" {
        info["version"] = version
        modified = true
    }

    paths, ok := doc["paths"].(map[string]any)
    if !ok || len(paths) == 0 {
        return modified
    }

    for template, pim := range paths {
        pi, ok := pim.(map[string]any)
        if !ok { continue }
        pathParams := templateParams(template)
        for method, opm := range pi {
            switch strings.ToLower(method) {
            case "get", "post", "put", "delete", "patch", "options", "head":
            default:
                continue
            }
            op, ok := opm.(map[string]any)
            if !ok { continue }

            params, _ := op["parameters"].([]any)
            declared := map[string]bool{}
            for _, p := range params {
                pm, _ := p.(map[string]any)
                if pm == nil { continue }
                switch asString(pm["in"]) {
                case "path":
                    declared[asString(pm["name"])] = true
                    pm["required"] = true
                    normalizeParamType(pm)
                    modified = true
                case "query":
                    if normalizeParamType(pm) { modified = true }
                case "body":
                    if sch, ok := pm["schema"].(map[string]any); ok {
                        if normalizeSchema(sch) { modified = true }
                    } else {
                        pm["schema"] = map[string]any{}
                        modified = true
                    }
                }
            }
            for _, name := range pathParams {
                if declared[name] { continue }
                params = append(params, map[string]any{
                    "name":     name,
                    "in":       "path",
                    "type":     "string",
                    "required": true,
                })
                modified = true
            }
            if params != nil {
                op["parameters"] = params
            }

            responses, _ := op["responses"].(map[string]any)
            if len(responses) == 0 {
                // Swagger requires at least one response; an operation only
                // ever answered with a skipped body has none.
                op["responses"] = map[string]any{"default": map[string]any{"description": "Unobserved response"}}
                modified = true
                continue
            }
            for code, rm := range responses {
                r, _ := rm.(map[string]any)
                if r == nil { continue }
                if asString(r["description"]) == "" {
                    r["description"] = fmt.Sprintf("Observed %s response", code)
                    modified = true
                }
                if sch, ok := r["schema"].(map[string]any); ok {
                    if normalizeSchema(sch) { modified = true }
                }
            }
        }
    }
    return modified
}

// normalizeSchema collapses type sets recursively. Enum candidates are kept
// only where the collapsed type is string.
func normalizeSchema(sch map[string]any) bool {
    modified := false
    kinds := kindsOf(sch["type"])
    nonNull := make([]string, 0, len(kinds))
    nullable := false
    for _, k := range kinds {
        if k == "null" {
            nullable = true
            continue
        }
        nonNull = append(nonNull, k)
    }
    if _, isList := sch["type"].([]any); isList || nullable {
        modified = true
    }
    if len(nonNull) == 2 && containsKind(nonNull, "integer") && containsKind(nonNull, "number") {
        nonNull = []string{"number"}
    }
    switch len(nonNull) {
    case 0:
        delete(sch, "type")
    case 1:
        sch["type"] = nonNull[0]
    default:
        delete(sch, "type")
    }
    if nullable {
        sch["x-nullable"] = true
    }
    if _, ok := sch["enum"]; ok && asString(sch["type"]) != "string" {
        delete(sch, "enum")
        modified = true
    }

    if props, ok := sch["properties"].(map[string]any); ok {
        for _, pm := range props {
            if ps, ok := pm.(map[string]any); ok && normalizeSchema(ps) {
                modified = true
            }
        }
    }
    if items, ok := sch["items"].(map[string]any); ok && normalizeSchema(items) {
        modified = true
    }
    return modified
}

// normalizeParamType turns a query or path parameter type set into one type.
// Any array sighting makes the parameter an array of strings.
func normalizeParamType(pm map[string]any) bool {
    kinds := kindsOf(pm["type"])
    _, isList := pm["type"].([]any)
    switch {
    case containsKind(kinds, "array"):
        pm["type"] = "array"
        if _, ok := pm["items"]; !ok {
            pm["items"] = map[string]any{"type": "string"}
        }
        return true
    case len(kinds) == 1 && kinds[0] != "null":
        pm["type"] = kinds[0]
        return isList
    default:
        pm["type"] = "string"
        return true
    }
}

func kindsOf(v any) []string {
    switch t := v.(type) {
    case string:
        return []string{t}
    case []any:
        out := make([]string, 0, len(t))
        for _, k := range t {
            if s := asString(k); s != "" {
                out = append(out, s)
            }
        }
        return out
    }
    return nil
}

func containsKind(kinds []string, want string) bool {
    for _, k := range kinds {
        if k == want { return true }
    }
    return false
}

// templateParams lists the {name} placeholders of a template path, sorted.
func templateParams(template string) []string {
    var out []string
    for _, seg := range strings.Split(template, "/") {
        if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2 {
            out = append(out, seg[1:len(seg)-1])
        }
    }
    sort.Strings(out)
    return out
}

func asString(v any) string {
    if s, ok := v.(string); ok { return s }
    return ""
}
