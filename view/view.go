package view

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/i18n"
)

var (
	baseDir  string
	once     sync.Once
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	resolversMu  sync.RWMutex
	langResolver = func(r *http.Request) string { return i18n.LangFromContext(r.Context()) }
	// permission resolvers are set by the host app so templates can hide what the user cannot use
	canResolver     func(r *http.Request, path, action string) bool
	isAdminResolver func(*http.Request) bool
)

// SetLangResolver allows the host app to provide a custom language resolver.
func SetLangResolver(f func(*http.Request) string) {
	if f != nil {
		resolversMu.Lock()
		langResolver = f
		resolversMu.Unlock()
	}
}

// SetCanResolver sets the callback behind the "can" template func (screen path, action).
func SetCanResolver(f func(*http.Request, string, string) bool) {
	resolversMu.Lock()
	canResolver = f
	resolversMu.Unlock()
}

// SetIsAdminResolver sets the callback behind the "isAdmin" template func.
func SetIsAdminResolver(f func(*http.Request) bool) {
	resolversMu.Lock()
	isAdminResolver = f
	resolversMu.Unlock()
}

// layoutBase walks upward from a template path to find the directory that contains layout.html.
// If none is found, it returns the template's own directory.
func layoutBase(mainPath string) string {
	d := filepath.Dir(mainPath)
	for {
		lp := filepath.Join(d, "layout.html")
		if fi, err := os.Stat(lp); err == nil && !fi.IsDir() {
			return d
		}
		p := filepath.Dir(d)
		if p == d {
			return filepath.Dir(mainPath)
		}
		d = p
	}
}

func detectBase() {
	candidates := []string{"templates", "../templates", "../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// Funcs returns the template funcs bound to r: translations, permission
// checks and formatting helpers.
func Funcs(r *http.Request) template.FuncMap {
	resolversMu.RLock()
	lang := langResolver(r)
	can, isAdmin := canResolver, isAdminResolver
	resolversMu.RUnlock()
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"tf":   func(code string, args ...any) string { return i18n.Tf(lang, code, args...) },
		"lang": func() string { return lang },
		// can reports whether the user may perform action on the screen at path
		"can": func(path, action string) bool {
			return can != nil && can(r, path, action)
		},
		"isAdmin": func() bool {
			return isAdmin != nil && isAdmin(r)
		},
		"year": func() int { return time.Now().Year() },
		"date": formatDate,
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// formatDate renders a civil date; nil pointers and zero times render empty.
func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	}
	return ""
}

// SetBaseDir overrides the template base directory (useful for tests or custom setups).
func SetBaseDir(path string) {
	if path == "" {
		return
	}
	baseDir = filepath.Clean(path)
	once = sync.Once{}
}

// ResetForTests clears caches and forces base dir detection to rerun.
func ResetForTests() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
	baseDir = ""
	once = sync.Once{}
}

// Render parses and executes a single template file with shared funcs.
// name should be the filename (e.g., "roles.html"). Parsed templates are
// cached outside dev mode; funcs are rebound to r on every call.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	if baseDir == "" {
		once.Do(detectBase)
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	funcMap := Funcs(r)
	devMode := os.Getenv("DEV") == "1"
	if !devMode {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok && t != nil {
			c, err := t.Clone()
			if err != nil {
				return err
			}
			return c.Funcs(funcMap).Execute(w, data)
		}
	}

	t, err := parse(name, funcMap)
	if err != nil {
		return err
	}
	if !devMode {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
		// Execute a clone so the cached template stays unexecuted and clonable.
		if t, err = t.Clone(); err != nil {
			return err
		}
	}
	return t.Execute(w, data)
}

func parse(name string, funcMap template.FuncMap) (*template.Template, error) {
	mainPath := filepath.Join(baseDir, name)
	if _, err := os.Stat(mainPath); err != nil {
		candidates := []string{
			filepath.Join("templates", name),
			filepath.Join("../templates", name),
			filepath.Join("../../templates", name),
			filepath.Join("../../../templates", name),
		}
		for _, c := range candidates {
			if fi, e2 := os.Stat(c); e2 == nil && !fi.IsDir() {
				mainPath = c
				break
			}
		}
		if _, err2 := os.Stat(mainPath); err2 != nil {
			return nil, err
		}
	}
	baseDir = layoutBase(mainPath)
	layoutPath := filepath.Join(baseDir, "layout.html")
	partials, _ := filepath.Glob(filepath.Join(baseDir, "partials", "*.html"))

	contentBytes, err := os.ReadFile(mainPath)
	if err != nil {
		return nil, err
	}
	// A full document skips layout wrapping.
	if !bytes.Contains(bytes.ToLower(contentBytes), []byte("<!doctype")) {
		if fi, err := os.Stat(layoutPath); err == nil && !fi.IsDir() {
			files := append([]string{layoutPath, mainPath}, partials...)
			return template.New("layout.html").Funcs(funcMap).ParseFiles(files...)
		}
	}
	t, err := template.New(name).Funcs(funcMap).ParseFiles(mainPath)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("template not parsed")
	}
	return t, nil
}
