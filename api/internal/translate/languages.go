package translate

import (
	"strings"

	"golang.org/x/text/language"
)

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languages = []Language{
	{"en", "English"},
	{"pt", "Portuguese (Portugal)"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"de", "German"},
	{"it", "Italian"},
	{"nl", "Dutch"},
	{"pl", "Polish"},
	{"ru", "Russian"},
	{"zh", "Chinese"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"ar", "Arabic"},
	{"hi", "Hindi"},
	{"tr", "Turkish"},
	{"sv", "Swedish"},
	{"da", "Danish"},
	{"fi", "Finnish"},
	{"no", "Norwegian"},
	{"cs", "Czech"},
	{"hu", "Hungarian"},
	{"ro", "Romanian"},
	{"bg", "Bulgarian"},
	{"el", "Greek"},
	{"uk", "Ukrainian"},
	{"hr", "Croatian"},
	{"sk", "Slovak"},
	{"lt", "Lithuanian"},
	{"lv", "Latvian"},
	{"et", "Estonian"},
	{"th", "Thai"},
	{"vi", "Vietnamese"},
}

// Languages returns the supported language catalog in display order.
func Languages() []Language {
	return append([]Language(nil), languages...)
}

// NormalizeCode reduces a BCP 47 tag to its base language ("pt-PT" -> "pt").
// Unparseable input is returned lower-cased and trimmed.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}

// IsSupported reports whether code (after normalization) is in the catalog.
func IsSupported(code string) bool {
	c := NormalizeCode(code)
	for _, l := range languages {
		if l.Code == c {
			return true
		}
	}
	return false
}

// LanguageName returns the display name for code, or "Unknown".
func LanguageName(code string) string {
	c := NormalizeCode(code)
	for _, l := range languages {
		if l.Code == c {
			return l.Name
		}
	}
	return "Unknown"
}

// IsSource reports whether lang means "no translation".
func IsSource(lang string) bool {
	c := NormalizeCode(lang)
	return c == "" || c == "en"
}
