package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Full-word aliases accepted in addition to BCP 47 tags.
var wordAliases = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
	"turkish":    "tr",
	"ukrainian":  "uk",
}

// Normalize converts a language tag, ISO 639 code or English language name to
// its base language code (for example "es-MX", "spa" and "Spanish" all become
// "es"). Unknown or undetermined languages return an error.
func Normalize(input string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return "", fmt.Errorf("language is required")
	}
	if code, ok := wordAliases[trimmed]; ok {
		return code, nil
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("unsupported language %q: %w", input, err)
	}
	// Base guesses a language for und-XX tags; only an explicit one counts.
	base, confidence := tag.Base()
	if confidence != language.Exact || !spokenLanguage(base.String()) {
		return "", fmt.Errorf("unsupported language %q", input)
	}
	return base.String(), nil
}

// spokenLanguage rejects the ISO 639 special codes (undetermined, multiple,
// no linguistic content, uncoded) and the private-use range qaa-qtz.
func spokenLanguage(code string) bool {
	switch code {
	case "und", "mul", "zxx", "mis":
		return false
	}
	return len(code) != 3 || code[0] != 'q' || code[1] < 'a' || code[1] > 't'
}

// ToISO2 returns the normalized code for input, or "" when it is not a
// recognized language.
func ToISO2(input string) string {
	code, err := Normalize(input)
	if err != nil {
		return ""
	}
	return code
}

// DisplayName returns the English name of a language code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	normalized, err := Normalize(trimmed)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	name := display.English.Languages().Name(language.Make(normalized))
	if name == "" {
		return strings.ToUpper(normalized)
	}
	return name
}
