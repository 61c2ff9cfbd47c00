package lang

import (
	"errors"
	"testing"
)

func TestLookup(t *testing.T) {
	l, ok := Lookup("hin_Deva")
	if !ok {
		t.Fatal("Lookup(hin_Deva) not found")
	}
	if l.Label != "Hindi" {
		t.Errorf("Label = %q, want %q", l.Label, "Hindi")
	}

	if _, ok := Lookup("xx"); ok {
		t.Error("Lookup(xx) should not be found")
	}
}

func TestLabelFallsBackToCode(t *testing.T) {
	if got := Label("eng_Latn"); got != "English" {
		t.Errorf("Label(eng_Latn) = %q, want English", got)
	}
	if got := Label("tlh_Latn"); got != "tlh_Latn" {
		t.Errorf("Label(tlh_Latn) = %q, want code back", got)
	}
}

func TestCatalogIsCopy(t *testing.T) {
	c := Catalog()
	c[0].Code = "mutated"
	if Catalog()[0].Code == "mutated" {
		t.Error("Catalog() must return a copy")
	}
}

func TestCatalogCodesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, l := range Catalog() {
		if seen[l.Code] {
			t.Errorf("duplicate code %q", l.Code)
		}
		seen[l.Code] = true
	}
}

func TestPairSwap(t *testing.T) {
	p := Pair{Source: "eng_Latn", Target: "hin_Deva"}
	s := p.Swap()

	if s.Source != "hin_Deva" || s.Target != "eng_Latn" {
		t.Errorf("Swap() = %+v", s)
	}
	if p.Source != "eng_Latn" {
		t.Error("Swap() must not modify the receiver")
	}
	if s.Swap() != p {
		t.Error("Swap() twice should be identity")
	}
}

func TestPairValidate(t *testing.T) {
	tests := []struct {
		name    string
		pair    Pair
		wantErr bool
	}{
		{"valid", Pair{"eng_Latn", "hin_Deva"}, false},
		{"unknown source", Pair{"xxx", "hin_Deva"}, true},
		{"unknown target", Pair{"eng_Latn", ""}, true},
		{"same", Pair{"spa_Latn", "spa_Latn"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pair.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := (Pair{"spa_Latn", "spa_Latn"}).Validate(); !errors.Is(err, ErrSamePair) {
		t.Errorf("Validate() error = %v, want ErrSamePair", err)
	}
}
