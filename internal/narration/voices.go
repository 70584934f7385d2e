package narration

import (
	"strings"

	"golang.org/x/text/language"
)

// Voice is one synthesis voice offered by the speech endpoint.
type Voice struct {
	Name   string
	Gender string
	Locale language.Tag
}

// DefaultVoice is used when no configured preference matches.
const DefaultVoice = "alloy"

// Catalog lists the voices proctor knows how to select between.
var Catalog = []Voice{
	{Name: "alloy", Gender: "neutral", Locale: language.AmericanEnglish},
	{Name: "ash", Gender: "male", Locale: language.AmericanEnglish},
	{Name: "ballad", Gender: "male", Locale: language.BritishEnglish},
	{Name: "coral", Gender: "female", Locale: language.AmericanEnglish},
	{Name: "echo", Gender: "male", Locale: language.AmericanEnglish},
	{Name: "fable", Gender: "male", Locale: language.BritishEnglish},
	{Name: "nova", Gender: "female", Locale: language.AmericanEnglish},
	{Name: "onyx", Gender: "male", Locale: language.AmericanEnglish},
	{Name: "sage", Gender: "female", Locale: language.AmericanEnglish},
	{Name: "shimmer", Gender: "female", Locale: language.AmericanEnglish},
	{Name: "verse", Gender: "male", Locale: language.AmericanEnglish},
}

// SelectVoice picks an explicitly named catalog voice, then the first voice
// matching both gender and language, then DefaultVoice.
func SelectVoice(name string, gender string, lang string) Voice {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" {
		for _, v := range Catalog {
			if v.Name == name {
				return v
			}
		}
	}

	gender = strings.ToLower(strings.TrimSpace(gender))
	for _, v := range Catalog {
		if gender != "" && v.Gender != gender {
			continue
		}
		if !sameLanguage(v.Locale, lang) {
			continue
		}
		return v
	}

	for _, v := range Catalog {
		if v.Name == DefaultVoice {
			return v
		}
	}
	return Catalog[0]
}

// sameLanguage reports whether raw names the same base language as tag.
// An empty or unparseable raw matches every voice.
func sameLanguage(tag language.Tag, raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	want, err := language.Parse(raw)
	if err != nil {
		return true
	}
	wantBase, _ := want.Base()
	haveBase, _ := tag.Base()
	return wantBase == haveBase
}
