package config

import "testing"

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8085")
	if p, err := Port("TEST_PORT", "1"); err != nil || p != "8085" {
		t.Fatalf("expected 8085, got %q (%v)", p, err)
	}
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestIntAndBool(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	if n := Int("TEST_INT", 3); n != 12 {
		t.Fatalf("expected 12, got %d", n)
	}
	t.Setenv("TEST_INT", "twelve")
	if n := Int("TEST_INT", 3); n != 3 {
		t.Fatalf("expected fallback 3, got %d", n)
	}

	t.Setenv("TEST_BOOL", "yes")
	if !Bool("TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if Bool("TEST_BOOL", false) {
		t.Fatal("expected fallback false")
	}
}

func TestList(t *testing.T) {
	got := List("TEST_LIST_UNSET", " a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %#v", got)
	}
}
