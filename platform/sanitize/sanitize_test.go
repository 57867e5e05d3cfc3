package sanitize

import "testing"

func TestText(t *testing.T) {
	got := Text("  <b>Jean</b>   Pierre ")
	if got != "Jean Pierre" {
		t.Fatalf("want %q, got %q", "Jean Pierre", got)
	}
}

func TestSpokenEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jean point Dupont arobase example point com", "jean.dupont@example.com"},
		{"jean dot dupont at example dot fr", "jean.dupont@example.fr"},
		{"marie tiret claire underscore b arobase mail point ch", "marie-claire_b@mail.ch"},
		{" Jean.Dupont@Example.com ", "jean.dupont@example.com"},
		{"pointe arobase example point com", "pointe@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SpokenEmail(tt.in); got != tt.want {
				t.Fatalf("want %q, got %q", tt.want, got)
			}
		})
	}
}
