package normalize

import "testing"

func TestID(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"12.345.678/0001-99": "12345678000199",
		"12345678000199":     "12345678000199",
		"123.456.789-09":     "12345678909",
		"abc":                "",
		" 1 2 3 ":            "123",
	}
	for in, want := range cases {
		if got := ID(in); got != want {
			t.Fatalf("ID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestText(t *testing.T) {
	cases := map[string]string{
		"":                           "",
		"  ACME   Comércio\tLTDA \n": "acme comércio ltda",
		"São Paulo":                  "são paulo",
	}
	for in, want := range cases {
		if got := Text(in); got != want {
			t.Fatalf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNameStripsAccentsAndCase(t *testing.T) {
	a := Name("JOÃO CARLOS DA SILVA")
	b := Name("João  Carlos da Silva")
	if a != b {
		t.Fatalf("expected names to match: %q vs %q", a, b)
	}
	if a != "joao carlos da silva" {
		t.Fatalf("unexpected normalized name %q", a)
	}
	if got := Name("Conceição Araújo Güell"); got != "conceicao araujo guell" {
		t.Fatalf("unexpected transliteration %q", got)
	}
}
