package canon

import (
	"bytes"
	"testing"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "c": 3}
	out, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestCanonicalizeDeterministic(t *testing.T) {
	type signed struct {
		Version int               `json:"version"`
		Keys    map[string]string `json:"keys"`
		Expires string            `json:"expires"`
	}
	v := signed{
		Version: 3,
		Keys:    map[string]string{"zed": "z", "alpha": "a"},
		Expires: "2030-01-01T00:00:00Z",
	}

	first, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		next, err := Canonicalize(v)
		if err != nil {
			t.Fatalf("Canonicalize failed on iteration %d: %v", i, err)
		}
		if !bytes.Equal(first, next) {
			t.Fatalf("canonical form changed across calls: %s vs %s", first, next)
		}
	}
}

func TestCanonicalizeNoWhitespace(t *testing.T) {
	out, err := Canonicalize(map[string]any{"x": []int{1, 2, 3}})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if bytes.ContainsAny(out, " \n\t") {
		t.Errorf("canonical output contains insignificant whitespace: %q", out)
	}
}

func TestCanonicalizeMinimalIntegers(t *testing.T) {
	out, err := Canonicalize(map[string]any{"n": 42})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if string(out) != `{"n":42}` {
		t.Errorf("got %s", out)
	}
}

func TestCanonicalizeRejectsNonUTF8Key(t *testing.T) {
	bad := map[string]any{string([]byte{0xff, 0xfe}): 1}
	if _, err := Canonicalize(bad); err == nil {
		t.Fatal("expected error for non-UTF-8 key, got nil")
	}
}

func TestCanonicalizeNoHTMLEscaping(t *testing.T) {
	out, err := Canonicalize(map[string]any{"html": "<a & b>"})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	want := `{"html":"<a & b>"}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestCanonicalizeEqualValuesEqualBytes(t *testing.T) {
	x := map[string]any{"a": 1, "b": []any{"p", "q"}}
	y := map[string]any{"b": []any{"p", "q"}, "a": 1}

	xb, err := Canonicalize(x)
	if err != nil {
		t.Fatalf("Canonicalize(x) failed: %v", err)
	}
	yb, err := Canonicalize(y)
	if err != nil {
		t.Fatalf("Canonicalize(y) failed: %v", err)
	}
	if !bytes.Equal(xb, yb) {
		t.Errorf("equal abstract values canonicalized differently: %s vs %s", xb, yb)
	}
}

func TestSHA256HexKnownVector(t *testing.T) {
	got := SHA256Hex([]byte("hello world!"))
	want := "7509e5bda0c762d2bac7f90d758b5b2263fa01ccbc542ab5e3df163be08e6ca9"
	if got != want {
		t.Errorf("SHA256Hex(%q) = %s, want %s", "hello world!", got, want)
	}
}
