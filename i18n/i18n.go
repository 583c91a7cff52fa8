// Package i18n holds the embedded message catalogs and language detection.
package i18n

import (
	"context"
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLang is used when no supported language matches.
const DefaultLang = "fr"

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	loadOnce sync.Once
	catalogs map[string]map[string]string
	loadErr  error

	supported = []language.Tag{language.French, language.English, language.Spanish}
	matcher   = language.NewMatcher(supported)
)

func load() {
	catalogs = make(map[string]map[string]string)
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		loadErr = err
		return
	}
	for _, e := range entries {
		b, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			loadErr = err
			return
		}
		m := map[string]string{}
		if err := yaml.Unmarshal(b, &m); err != nil {
			loadErr = fmt.Errorf("parse %s: %w", e.Name(), err)
			return
		}
		catalogs[strings.TrimSuffix(e.Name(), ".yaml")] = m
	}
}

// Load parses the embedded catalogs and reports any error. T calls it lazily.
func Load() error {
	loadOnce.Do(load)
	return loadErr
}

// Languages returns the supported language codes, default first.
func Languages() []string {
	out := make([]string, 0, len(supported))
	for _, t := range supported {
		b, _ := t.Base()
		out = append(out, b.String())
	}
	return out
}

// T translates code for lang, falling back to DefaultLang then to code itself.
func T(lang, code string) string {
	_ = Load()
	if m, ok := catalogs[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := catalogs[DefaultLang][code]; ok {
		return s
	}
	return code
}

// Tf translates code and formats it with args.
func Tf(lang, code string, args ...any) string {
	return fmt.Sprintf(T(lang, code), args...)
}

// DetectLanguage picks a supported language from an Accept-Language header.
func DetectLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return DefaultLang
	}
	tag, _, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLang
	}
	base, _ := tag.Base()
	return base.String()
}

// Normalize returns lang if supported, otherwise DefaultLang.
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, l := range Languages() {
		if l == lang {
			return l
		}
	}
	return DefaultLang
}

type langKey struct{}

// WithLang stores the request language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, Normalize(lang))
}

// LangFromContext returns the request language or DefaultLang.
func LangFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(langKey{}).(string); ok && l != "" {
		return l
	}
	return DefaultLang
}
