package schema

import (
	"errors"
	"testing"
)

func TestDecode_RejectsNonJSON(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "hello world", "<html></html>", `{"a": 1} trailing`, `{} {}`, `{"a":`} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrNotJSON) {
			t.Fatalf("Decode(%q): expected ErrNotJSON, got %v", raw, err)
		}
		if IsJSON([]byte(raw)) {
			t.Fatalf("IsJSON(%q) = true", raw)
		}
	}
}

func TestDecode_Variants(t *testing.T) {
	t.Parallel()
	v, err := Decode([]byte(` {"n": null, "b": false, "i": 3, "f": 0.5, "s": "x", "a": [1], "o": {}} `))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	obj, ok := v.(Object)
	if !ok {
		t.Fatalf("expected Object, got %T", v)
	}
	want := map[string]Kind{
		"n": KindNull, "b": KindBoolean, "i": KindInteger, "f": KindNumber,
		"s": KindString, "a": KindArray, "o": KindObject,
	}
	for key, kind := range want {
		if got := obj[key].Kind(); got != kind {
			t.Errorf("%s: kind %s, want %s", key, got, kind)
		}
	}
	if keys := obj.Keys(); len(keys) != 7 || keys[0] != "a" || keys[6] != "s" {
		t.Errorf("unexpected key order %v", keys)
	}
}

func TestToAny_RoundTrip(t *testing.T) {
	t.Parallel()
	v, err := Decode([]byte(`[1, 2.5, "x", true, null, {"k": [false]}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	back, err := FromAny(ToAny(v))
	if err != nil {
		t.Fatalf("from any: %v", err)
	}
	arr := back.(Array)
	if len(arr) != 6 || arr[0].Kind() != KindInteger || arr[1].Kind() != KindNumber || arr[4].Kind() != KindNull {
		t.Fatalf("unexpected round trip: %#v", arr)
	}
}
