package e2e

import (
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/ThalitaPinheiro/defacto/internal/capture"
    cli "github.com/ThalitaPinheiro/defacto/internal/cli"
    "github.com/ThalitaPinheiro/defacto/internal/store"
)

type call struct {
    method string
    path   string
    body   string
}

// script is the traffic replayed against the sample service.
var script = []call{
    {"GET", "/api/pets?limit=10", ""},
    {"GET", "/api/pets/1", ""},
    {"POST", "/api/pets/1", `{"name": "Rex", "tags": ["dog"]}`},
    {"GET", "/api/pets/2?verbose=true&verbose=false", ""},
    {"GET", "/api/owners/9", ""},
    {"DELETE", "/api/pets/1", ""},
    {"GET", "/api/pets/missing", ""},
}

// petService answers with JSON except for deletes.
func petService() http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = io.Copy(io.Discard, r.Body)
        switch {
        case r.Method == http.MethodDelete:
            w.WriteHeader(http.StatusNoContent)
        case strings.HasSuffix(r.URL.Path, "/missing"):
            w.WriteHeader(http.StatusNotFound)
            _, _ = io.WriteString(w, `{"error": "no such pet"}`)
        case strings.HasPrefix(r.URL.Path, "/api/owners/"):
            _, _ = io.WriteString(w, `{"id": 9, "pets": [1, 2], "nickname": null}`)
        case r.URL.Path == "/api/pets":
            _, _ = io.WriteString(w, `[{"id": 1, "name": "Rex"}, {"id": 2, "name": "Tom", "age": 3.5}]`)
        default:
            _, _ = io.WriteString(w, `{"id": 1, "name": "Rex", "vaccinated": true}`)
        }
    })
}

func replay(t *testing.T, srvURL, docPath string, calls []call, resume bool) {
    t.Helper()
    target, err := capture.ParseTarget(srvURL + "/api")
    if err != nil {
        t.Fatalf("target: %v", err)
    }
    backend, err := store.NewFile(docPath)
    if err != nil {
        t.Fatalf("backend: %v", err)
    }
    var opts []store.Option
    if resume {
        opts = append(opts, store.WithResume())
    }
    st, err := store.Open(backend, opts...)
    if err != nil {
        t.Fatalf("open store: %v", err)
    }
    defer st.Close()

    client := capture.NewClient(capture.NewRecorder(st, target), nil)
    for _, c := range calls {
        var body io.Reader
        if c.body != "" {
            body = strings.NewReader(c.body)
        }
        req, err := http.NewRequest(c.method, srvURL+c.path, body)
        if err != nil {
            t.Fatalf("request: %v", err)
        }
        resp, err := client.Do(req)
        if err != nil {
            t.Fatalf("%s %s: %v", c.method, c.path, err)
        }
        _, _ = io.Copy(io.Discard, resp.Body)
        _ = resp.Body.Close()
    }
}

func runCLI(t *testing.T, args ...string) {
    t.Helper()
    root := cli.NewRootCmd()
    root.SetOut(io.Discard)
    root.SetErr(io.Discard)
    root.SetArgs(args)
    if err := root.Execute(); err != nil {
        t.Fatalf("cli execute %v: %v", args, err)
    }
}

func digestFile(t *testing.T, path string) string {
    t.Helper()
    b, err := os.ReadFile(path)
    if err != nil {
        t.Fatalf("read %s: %v", path, err)
    }
    sum := sha256.Sum256(b)
    return hex.EncodeToString(sum[:])
}

func TestE2E_CaptureThenExport(t *testing.T) {
    srv := httptest.NewServer(petService())
    defer srv.Close()
    dir := t.TempDir()
    docPath := filepath.Join(dir, "swagger.json")

    replay(t, srv.URL, docPath, script, false)

    var doc map[string]any
    raw, err := os.ReadFile(docPath)
    if err != nil {
        t.Fatalf("read captured: %v", err)
    }
    if err := json.Unmarshal(raw, &doc); err != nil {
        t.Fatalf("captured document is not JSON: %v", err)
    }
    if doc["swagger"] != "2.0" {
        t.Fatalf("unexpected swagger marker: %v", doc["swagger"])
    }
    paths := doc["paths"].(map[string]any)
    for _, want := range []string{"/pets", "/pets/{id}", "/owners/{id}"} {
        if _, ok := paths[want]; !ok {
            t.Errorf("missing path %s in %v", want, keys(paths))
        }
    }
    if item := paths["/pets/{id}"].(map[string]any); item["delete"] != nil {
        t.Errorf("non-JSON delete response must not be recorded")
    }

    out := filepath.Join(dir, "openapi.yaml")
    runCLI(t, "export", "--in", docPath, "--out", out, "--check", "--title", "Pets")
    exported, err := os.ReadFile(out)
    if err != nil {
        t.Fatalf("read export: %v", err)
    }
    for _, want := range []string{"openapi: 3.", "title: Pets", "/pets/{id}:", "requestBody:"} {
        if !strings.Contains(string(exported), want) {
            t.Errorf("export missing %q", want)
        }
    }
}

func TestE2E_DeterministicOutput(t *testing.T) {
    srv := httptest.NewServer(petService())
    defer srv.Close()
    dir := t.TempDir()

    var docs, exports []string
    for i := 0; i < 2; i++ {
        docPath := filepath.Join(dir, fmt.Sprintf("run%d.json", i))
        replay(t, srv.URL, docPath, script, false)
        out := filepath.Join(dir, fmt.Sprintf("run%d.yaml", i))
        runCLI(t, "export", "--in", docPath, "--out", out)
        docs = append(docs, digestFile(t, docPath))
        exports = append(exports, digestFile(t, out))
    }
    if docs[0] != docs[1] {
        t.Fatalf("captured documents differ across identical runs")
    }
    if exports[0] != exports[1] {
        t.Fatalf("exports differ across identical runs")
    }
}

func TestE2E_ResumeMatchesSingleSession(t *testing.T) {
    srv := httptest.NewServer(petService())
    defer srv.Close()
    dir := t.TempDir()

    single := filepath.Join(dir, "single.json")
    replay(t, srv.URL, single, script, false)

    split := filepath.Join(dir, "split.json")
    half := len(script) / 2
    replay(t, srv.URL, split, script[:half], false)
    replay(t, srv.URL, split, script[half:], true)

    if digestFile(t, single) != digestFile(t, split) {
        a, _ := os.ReadFile(single)
        b, _ := os.ReadFile(split)
        t.Fatalf("resumed capture differs\nsingle:\n%s\nsplit:\n%s", a, b)
    }
}

func keys(m map[string]any) []string {
    out := make([]string, 0, len(m))
    for k := range m {
        out = append(out, k)
    }
    return out
}
