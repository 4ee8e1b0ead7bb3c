// Package i18n translates the user facing messages of the API. Catalogs are
// YAML files embedded at build time, one per locale.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLocale is used when the client asks for nothing we support.
	DefaultLocale = "en"
	// AcceptLanguageHeader is the HTTP header name for language preference.
	AcceptLanguageHeader = "Accept-Language"
)

//go:embed locales/*.yaml
var catalogFS embed.FS

var (
	defaultTranslator *Translator
	translatorOnce    sync.Once
)

// Translator looks up messages by key and locale.
type Translator struct {
	messages map[string]map[string]string
}

// NewTranslator loads the embedded catalogs. It panics on a malformed
// catalog, which can only be a build defect.
func NewTranslator() *Translator {
	messages, err := loadCatalogs()
	if err != nil {
		panic(err)
	}
	return &Translator{messages: messages}
}

func loadCatalogs() (map[string]map[string]string, error) {
	files, err := catalogFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	messages := make(map[string]map[string]string, len(files))
	for _, f := range files {
		raw, err := catalogFS.ReadFile(path.Join("locales", f.Name()))
		if err != nil {
			return nil, err
		}
		catalog := make(map[string]string)
		if err := yaml.Unmarshal(raw, &catalog); err != nil {
			return nil, fmt.Errorf("i18n catalog %s: %w", f.Name(), err)
		}
		messages[strings.TrimSuffix(f.Name(), path.Ext(f.Name()))] = catalog
	}
	if _, ok := messages[DefaultLocale]; !ok {
		return nil, fmt.Errorf("i18n catalog for default locale %q missing", DefaultLocale)
	}
	return messages, nil
}

// GetTranslator returns the shared translator.
func GetTranslator() *Translator {
	translatorOnce.Do(func() {
		defaultTranslator = NewTranslator()
	})
	return defaultTranslator
}

// Translate returns the message for key in locale, falling back to the
// default locale and finally to the key itself.
func (t *Translator) Translate(key, locale string) string {
	if msg, ok := t.messages[locale][key]; ok {
		return msg
	}
	if msg, ok := t.messages[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// HasKey reports whether key has a translation in the default locale.
func (t *Translator) HasKey(key string) bool {
	_, ok := t.messages[DefaultLocale][key]
	return ok
}

// Locales returns the supported locales in sorted order.
func (t *Translator) Locales() []string {
	out := make([]string, 0, len(t.messages))
	for l := range t.messages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether locale has a catalog.
func (t *Translator) Supports(locale string) bool {
	_, ok := t.messages[locale]
	return ok
}

// GetLocale picks the supported locale the client prefers most, honouring
// q-values in Accept-Language. Region subtags are ignored, so "pt-BR" selects
// "pt".
func GetLocale(c *gin.Context) string {
	return negotiate(c.GetHeader(AcceptLanguageHeader), GetTranslator())
}

func negotiate(header string, t *Translator) string {
	best, bestQ := DefaultLocale, 0.0
	for _, part := range strings.Split(header, ",") {
		tag, q := parseLanguageRange(part)
		if q <= bestQ || !t.Supports(tag) {
			continue
		}
		best, bestQ = tag, q
	}
	return best
}

func parseLanguageRange(part string) (string, float64) {
	fields := strings.Split(part, ";")
	tag := strings.ToLower(strings.TrimSpace(fields[0]))
	if i := strings.IndexByte(tag, '-'); i > 0 {
		tag = tag[:i]
	}

	q := 1.0
	for _, param := range fields[1:] {
		name, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || name != "q" {
			continue
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return tag, 0
		}
		q = parsed
	}
	return tag, q
}
