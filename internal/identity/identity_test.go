package identity

import "testing"

func TestResolveIsStable(t *testing.T) {
	a, err := Resolve("discord", "1234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	b, err := Resolve(" Discord ", "1234 ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a != b {
		t.Fatalf("expected stable id, got %s and %s", a, b)
	}
	c, err := Resolve("whatsapp", "1234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a == c {
		t.Fatalf("platforms must not collide")
	}
}

func TestResolveRequiresInput(t *testing.T) {
	if _, err := Resolve("", "1"); err == nil {
		t.Fatalf("expected missing platform to fail")
	}
	if _, err := Resolve("cli", " "); err == nil {
		t.Fatalf("expected missing user to fail")
	}
}
