// Package textfilter rewrites visually-descriptive text so that image
// generation requests avoid categories the generative service's safety
// policy is likely to reject: intoxicants, real-world brands, and graphic
// violence. Replacements preserve the sentence's descriptive role while
// changing surface wording. The filter is applied to image prompts only,
// never to narrative text shown to the player.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replacement maps a sensitive term to a neutral equivalent. The list is
// ordered: more specific patterns come before generic ones that would
// otherwise shadow them ("bloody mary" before "bloody" before "blood").
type replacement struct {
	term string
	with string
}

var replacements = []replacement{
	// Intoxicants
	{"bloody mary", "dark potion"},
	{"whiskey", "amber brew"},
	{"whisky", "amber brew"},
	{"bourbon", "amber brew"},
	{"vodka", "clear tonic"},
	{"tequila", "cactus tonic"},
	{"martini", "silver potion"},
	{"cocktail", "potion"},
	{"beer", "frothy brew"},
	{"wine", "berry cordial"},
	{"rum", "spiced brew"},
	{"liquor", "elixir"},
	{"alcohol", "elixir"},
	{"drunk", "dazed"},

	// Real-world brands
	{"coca-cola", "fizzy drink"},
	{"coca cola", "fizzy drink"},
	{"pepsi", "fizzy drink"},
	{"mcdonald's", "burger stand"},
	{"mcdonalds", "burger stand"},
	{"starbucks", "coffee house"},
	{"marlboro", "plain cigarette"},
	{"jack daniels", "amber brew"},

	// Graphic violence
	{"blood-soaked", "shadow-stained"},
	{"bloodied", "grimy"},
	{"bloody", "grimy"},
	{"bloodstain", "dark stain"},
	{"blood", "dark stains"},
	{"gore", "grime"},
	{"corpse", "fallen figure"},
	{"severed", "broken"},
	{"mutilated", "battered"},
	{"decapitated", "defeated"},
	{"gunshot", "loud crack"},
	{"stabbing", "striking"},
	{"murdered", "lost"},
	{"murder", "mystery"},
}

// PromptFilter rewrites image prompts away from sensitive categories.
type PromptFilter struct {
	regexes map[string]*regexp.Regexp
}

// NewPromptFilter creates a filter with patterns precompiled.
func NewPromptFilter() *PromptFilter {
	pf := &PromptFilter{
		regexes: make(map[string]*regexp.Regexp, len(replacements)),
	}
	for _, r := range replacements {
		pattern := `\b` + regexp.QuoteMeta(r.term) + `\b`
		pf.regexes[r.term] = regexp.MustCompile(`(?i)` + pattern)
	}
	return pf
}

// Filter replaces sensitive terms in text with neutral equivalents.
func (pf *PromptFilter) Filter(text string) string {
	result := text
	for _, r := range replacements {
		regex := pf.regexes[r.term]
		result = regex.ReplaceAllStringFunc(result, func(match string) string {
			return preserveCase(match, r.with)
		})
	}
	return result
}

// ContainsSensitive checks whether text mentions any filtered term.
func (pf *PromptFilter) ContainsSensitive(text string) bool {
	for _, r := range replacements {
		if pf.regexes[r.term].MatchString(text) {
			return true
		}
	}
	return false
}

// preserveCase applies the case pattern of the original word to the
// replacement.
func preserveCase(original, replacement string) string {
	if len(original) == 0 {
		return replacement
	}

	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}

	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		return titleCaser.String(replacement)
	}

	// Mixed case: mirror the original character by character.
	result := make([]rune, 0, len(replacement))
	originalRunes := []rune(original)
	for i, r := range []rune(replacement) {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}
	return string(result)
}
