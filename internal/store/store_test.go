package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/ThalitaPinheiro/defacto/internal/route"
	"github.com/ThalitaPinheiro/defacto/internal/spec"
)

// memoryBackend is a Backend that can be told to fail.
type memoryBackend struct {
	mu      sync.Mutex
	raw     []byte
	saves   int
	failing bool
}

func (m *memoryBackend) Load() (*spec.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == nil {
		return nil, ErrNotFound
	}
	return spec.Parse(m.raw, "memory")
}

func (m *memoryBackend) Save(doc *spec.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.raw = raw
	m.saves++
	return nil
}

func (m *memoryBackend) Close() error { return nil }

func record(ex spec.Exchange) func(*spec.Document) error {
	return func(d *spec.Document) error {
		_, err := d.Apply(ex, route.New("/"))
		return err
	}
}

func TestOpen_WritesEmptyDocument(t *testing.T) {
	t.Parallel()
	b := &memoryBackend{}
	s, err := Open(b)
	assert.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 1, b.saves)
	assert.JSONEq(t, `{"swagger": "2.0", "paths": {}}`, string(b.raw))
}

func TestOpen_ResumeKeepsExistingDocument(t *testing.T) {
	t.Parallel()
	b := &memoryBackend{raw: []byte(`{"swagger": "2.0", "paths": {"/a": {}}}`)}
	s, err := Open(b, WithResume())
	assert.NoError(t, err)
	assert.Contains(t, s.Snapshot().Paths, "/a")
	assert.Equal(t, 0, b.saves)

	fresh, err := Open(b)
	assert.NoError(t, err)
	assert.Empty(t, fresh.Snapshot().Paths)
}

func TestOpen_ResumeWithoutDocumentStartsEmpty(t *testing.T) {
	t.Parallel()
	b := &memoryBackend{}
	s, err := Open(b, WithResume())
	assert.NoError(t, err)
	assert.Empty(t, s.Snapshot().Paths)
	assert.Equal(t, 1, b.saves)
}

func TestUpdate_PersistsEveryChange(t *testing.T) {
	t.Parallel()
	b := &memoryBackend{}
	s, err := Open(b)
	assert.NoError(t, err)

	err = s.Update(record(spec.Exchange{Method: "GET", Path: "/users", Status: 200, ResponseBody: []byte(`[]`)}))
	assert.NoError(t, err)
	assert.Equal(t, 2, b.saves)

	persisted, err := b.Load()
	assert.NoError(t, err)
	assert.Contains(t, persisted.Paths, "/users")
}

func TestUpdate_FailedMutationLeavesDocument(t *testing.T) {
	t.Parallel()
	b := &memoryBackend{}
	s, err := Open(b)
	assert.NoError(t, err)

	err = s.Update(record(spec.Exchange{Method: "GET", Path: "/users", Status: 200, ResponseBody: []byte(`nope`)}))
	assert.ErrorIs(t, err, spec.ErrSkipped)
	assert.Empty(t, s.Snapshot().Paths)
	assert.Equal(t, 1, b.saves)
}

func TestUpdate_PersistenceErrorSurfaces(t *testing.T) {
	t.Parallel()
	b := &memoryBackend{}
	s, err := Open(b)
	assert.NoError(t, err)

	b.failing = true
	err = s.Update(record(spec.Exchange{Method: "GET", Path: "/users", Status: 200, ResponseBody: []byte(`{}`)}))
	assert.ErrorIs(t, err, ErrPersist)
	assert.Empty(t, s.Snapshot().Paths, "memory must not run ahead of the backend")
}

func TestUpdate_ConcurrentUpdatesAreNotLost(t *testing.T) {
	t.Parallel()
	b := &memoryBackend{}
	s, err := Open(b)
	assert.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]int{string(rune('a' + i)): i})
			assert.NoError(t, s.Update(record(spec.Exchange{Method: "GET", Path: "/things", Status: 200, ResponseBody: body})))
		}(i)
	}
	wg.Wait()

	persisted, err := b.Load()
	assert.NoError(t, err)
	op, ok := persisted.Operation("/things", "get")
	assert.True(t, ok)
	assert.Len(t, op.Responses["200"].Schema.Properties, 20)
}

func TestUpdate_AfterClose(t *testing.T) {
	t.Parallel()
	s, err := Open(&memoryBackend{})
	assert.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.ErrorIs(t, s.Update(func(*spec.Document) error { return nil }), ErrClosed)
}

func TestFileBackend_WritesIndentedJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "swagger.json")
	b, err := NewFile(path)
	assert.NoError(t, err)

	s, err := Open(b)
	assert.NoError(t, err)
	assert.NoError(t, s.Update(record(spec.Exchange{Method: "POST", Path: "/users/1", RequestBody: []byte(`{"a":1}`), Status: 200, ResponseBody: []byte(`{"ok":true}`)})))

	raw, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"paths\": {")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	resumed, err := Open(b, WithResume())
	assert.NoError(t, err)
	_, ok := resumed.Snapshot().Operation("/users/{id}", "post")
	assert.True(t, ok)
}

func TestFileBackend_LoadMissing(t *testing.T) {
	t.Parallel()
	b, err := NewFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.NoError(t, err)
	_, err = b.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltBackend_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "specs.db")
	b, err := NewBolt(path, "api.example.com")
	assert.NoError(t, err)

	_, err = b.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := Open(b)
	assert.NoError(t, err)
	assert.NoError(t, s.Update(record(spec.Exchange{Method: "GET", Path: "/orders/9", Status: 200, ResponseBody: []byte(`{"id":9}`)})))
	assert.NoError(t, s.Close())

	reopened, err := NewBolt(path, "api.example.com")
	assert.NoError(t, err)
	defer reopened.Close()
	doc, err := reopened.Load()
	assert.NoError(t, err)
	_, ok := doc.Operation("/orders/{id}", "get")
	assert.True(t, ok)
}

func TestNewBolt_RequiresKey(t *testing.T) {
	t.Parallel()
	_, err := NewBolt(filepath.Join(t.TempDir(), "x.db"), "")
	assert.Error(t, err)
}
