// Package lang holds the static catalog of languages the translation service
// accepts and the source/target pair a run translates between.
package lang

import (
	"errors"
	"fmt"
)

// Language is one catalog entry. Codes are FLORES-200 style
// (ISO 639-3 plus script), e.g. "eng_Latn".
type Language struct {
	Code  string
	Label string
}

var catalog = []Language{
	{"eng_Latn", "English"},
	{"hin_Deva", "Hindi"},
	{"ben_Beng", "Bengali"},
	{"tam_Taml", "Tamil"},
	{"tel_Telu", "Telugu"},
	{"kan_Knda", "Kannada"},
	{"mal_Mlym", "Malayalam"},
	{"pan_Guru", "Punjabi"},
	{"urd_Arab", "Urdu"},
	{"mar_Deva", "Marathi"},
	{"guj_Gujr", "Gujarati"},
	{"fra_Latn", "French"},
	{"spa_Latn", "Spanish"},
	{"deu_Latn", "German"},
	{"por_Latn", "Portuguese"},
	{"ita_Latn", "Italian"},
	{"zho_Hans", "Chinese (Simplified)"},
	{"jpn_Jpan", "Japanese"},
	{"kor_Hang", "Korean"},
	{"arb_Arab", "Arabic"},
	{"rus_Cyrl", "Russian"},
	{"nld_Latn", "Dutch"},
}

var index = func() map[string]Language {
	m := make(map[string]Language, len(catalog))
	for _, l := range catalog {
		m[l.Code] = l
	}
	return m
}()

// ErrSamePair is returned when source and target are the same language.
var ErrSamePair = errors.New("source and target language are the same")

// Catalog returns a copy of all supported languages in display order.
func Catalog() []Language {
	return append([]Language(nil), catalog...)
}

// Lookup returns the catalog entry for code.
func Lookup(code string) (Language, bool) {
	l, ok := index[code]
	return l, ok
}

// Label returns the display name for code, or code itself if unknown.
func Label(code string) string {
	if l, ok := index[code]; ok {
		return l.Label
	}
	return code
}

// Pair is the source and target language of a translation.
type Pair struct {
	Source string
	Target string
}

// Swap returns the pair with source and target exchanged.
func (p Pair) Swap() Pair {
	return Pair{Source: p.Target, Target: p.Source}
}

// Validate checks that both codes are in the catalog and differ.
func (p Pair) Validate() error {
	if _, ok := index[p.Source]; !ok {
		return fmt.Errorf("unknown source language %q", p.Source)
	}
	if _, ok := index[p.Target]; !ok {
		return fmt.Errorf("unknown target language %q", p.Target)
	}
	if p.Source == p.Target {
		return ErrSamePair
	}
	return nil
}

func (p Pair) String() string {
	return p.Source + " -> " + p.Target
}
