package webhook

import "testing"

func TestAddressCompose(t *testing.T) {
	address := Address{Line1: "Storgatan 1", City: "Stockholm", PostalCode: "111 22", Country: "SE"}
	if got := address.Compose(); got != "Storgatan 1, 111 22 Stockholm, SE" {
		t.Fatalf("unexpected composed address: %q", got)
	}
	if !(Address{}).IsEmpty() {
		t.Fatalf("zero address should be empty")
	}
}

func TestParseCity(t *testing.T) {
	cases := map[string]string{
		"Storgatan 1, 111 22 Stockholm, Sweden": "Stockholm",
		"1 Main St, Springfield, IL 62704":      "Springfield",
		"Karl Johans gate 5, 0154, Oslo":        "Oslo",
		"no separators here":                    "",
		"":                                      "",
	}
	for input, want := range cases {
		if got := ParseCity(input); got != want {
			t.Fatalf("ParseCity(%q) want %q got %q", input, want, got)
		}
	}
}
