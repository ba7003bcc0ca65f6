// Package i18n renders message keys from the embedded catalogs.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// DefaultLanguage is used for unknown languages and missing keys.
const DefaultLanguage = "en"

// Catalog holds the messages of one language plus the default language.
type Catalog struct {
	lang     string
	messages map[string]string
	fallback map[string]string
}

// Load returns the catalog for lang, falling back to English.
func Load(lang string) (*Catalog, error) {
	fallback, err := readLocale(DefaultLanguage)
	if err != nil {
		return nil, err
	}

	lang = normalize(lang)
	c := &Catalog{lang: DefaultLanguage, messages: fallback, fallback: fallback}
	if lang == DefaultLanguage {
		return c, nil
	}

	messages, err := readLocale(lang)
	if err != nil {
		return c, fmt.Errorf("language %q unavailable, using %s: %w", lang, DefaultLanguage, err)
	}
	c.lang = lang
	c.messages = messages
	return c, nil
}

func readLocale(lang string) (map[string]string, error) {
	data, err := locales.ReadFile("locales/" + lang + ".yaml")
	if err != nil {
		return nil, err
	}
	var messages map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse %s catalog: %w", lang, err)
	}
	return messages, nil
}

// normalize maps zh_CN, zh-TW and friends onto the catalog names.
func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "_-"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// Language is the language actually in use.
func (c *Catalog) Language() string {
	return c.lang
}

// T renders key with {name} placeholders replaced from params. Unknown
// keys render as the key itself.
func (c *Catalog) T(key string, params map[string]any) string {
	msg, ok := c.messages[key]
	if !ok {
		if msg, ok = c.fallback[key]; !ok {
			return key
		}
	}
	if len(params) == 0 {
		return msg
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, 2*len(params))
	for _, name := range names {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(params[name]))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// Languages lists the embedded catalogs.
func Languages() []string {
	entries, _ := locales.ReadDir("locales")
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return out
}
