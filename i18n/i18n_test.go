package i18n

import (
	"context"
	"testing"
)

func TestDetectLanguage(t *testing.T) {
	if DetectLanguage("en-US,en;q=0.9") != "en" {
		t.Fatalf("expected en")
	}
	if DetectLanguage("EN-gb") != "en" {
		t.Fatalf("expected en for EN-gb")
	}
	if DetectLanguage("es-MX,es;q=0.9") != "es" {
		t.Fatalf("expected es")
	}
	if DetectLanguage("fr-FR,fr;q=0.8") != "fr" {
		t.Fatalf("expected fr fallback")
	}
	if DetectLanguage("de-DE") != "fr" {
		t.Fatalf("expected default fr for unsupported language")
	}
	if DetectLanguage("") != "fr" {
		t.Fatalf("expected default fr")
	}
}

func TestTranslations(t *testing.T) {
	if err := Load(); err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if T("en", "required") != "Required" {
		t.Fatalf("expected Required")
	}
	if T("fr", "required") != "Requis" {
		t.Fatalf("expected Requis")
	}
	if T("es", "required") != "Obligatorio" {
		t.Fatalf("expected Obligatorio")
	}
	// unknown code -> fallback to code
	if T("en", "__nope__") != "__nope__" {
		t.Fatalf("expected fallback to code")
	}
	// unknown language -> fallback to fr translation if exists
	if T("de", "required") != "Requis" {
		t.Fatalf("expected fr fallback for de lang")
	}
}

func TestTf(t *testing.T) {
	if got := Tf("en", "company_has_users", 1); got != "1 user(s) associated." {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCatalogsShareKeys(t *testing.T) {
	_ = Load()
	for code := range catalogs[DefaultLang] {
		for _, lang := range Languages() {
			if _, ok := catalogs[lang][code]; !ok {
				t.Errorf("%s missing in %s catalog", code, lang)
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize(" EN ") != "en" || Normalize("pt") != "fr" {
		t.Fatal("unexpected normalization")
	}
}

func TestLangContext(t *testing.T) {
	ctx := context.Background()
	if LangFromContext(ctx) != DefaultLang {
		t.Fatalf("expected default language")
	}
	if got := LangFromContext(WithLang(ctx, " ES ")); got != "es" {
		t.Fatalf("got %q, want es", got)
	}
	if got := LangFromContext(WithLang(ctx, "de")); got != DefaultLang {
		t.Fatalf("got %q, want %s", got, DefaultLang)
	}
}
