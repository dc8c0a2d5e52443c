package phone

import "testing"

func TestNormalize(t *testing.T) {
	n := New("57", "@c.us")

	cases := []struct {
		in   string
		want string
	}{
		{"3001234567", "573001234567@c.us"},
		{"573001234567", "573001234567@c.us"},
		{"300 123 4567", "573001234567@c.us"},
		{"+57 (300) 123-4567", "573001234567@c.us"},
		{"573001234567@c.us", "573001234567@c.us"},
		{"", ""},
		{"abc", ""},
		{"5712345", "5712345@c.us"}, // short numbers pass through untouched
	}
	for _, c := range cases {
		if got := n.Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New("57", "@c.us")
	inputs := []string{"3001234567", "573001234567", "1234", "+57 300-123-4567"}
	for _, in := range inputs {
		once := n.Normalize(in)
		if once == "" {
			t.Fatalf("expected non-empty result for %q", in)
		}
		if twice := n.Normalize(once); twice != once {
			t.Fatalf("not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	n := New("", "")
	if got := n.Normalize("3001234567"); got != "573001234567@c.us" {
		t.Fatalf("default config: got %q", got)
	}
}
