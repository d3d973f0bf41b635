package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "LessonForge" {
		t.Errorf("T(AppTitle) = %q, want 'LessonForge'", got)
	}

	got = T(ctx, "CorrectFeedback")
	if got != "Correct!" {
		t.Errorf("T(CorrectFeedback) = %q, want 'Correct!'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "StartLesson")
	if got != "Начать урок" {
		t.Errorf("T(StartLesson) = %q, want 'Начать урок'", got)
	}

	got = T(ctx, "CorrectFeedback")
	if got != "Верно!" {
		t.Errorf("T(CorrectFeedback) = %q, want 'Верно!'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "LessonsAvailable", 1)
	if got1 != "1 lesson available." {
		t.Errorf("Tp(LessonsAvailable, 1) = %q, want '1 lesson available.'", got1)
	}

	got5 := Tp(ctx, "LessonsAvailable", 5)
	if got5 != "5 lessons available." {
		t.Errorf("Tp(LessonsAvailable, 5) = %q, want '5 lessons available.'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ScorePercent", map[string]any{"Score": 75})
	if got != "Score: 75%" {
		t.Errorf("Td(ScorePercent, Score=75) = %q, want 'Score: 75%%'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInitRejectsUnbundledLanguage(t *testing.T) {
	if err := Init("fr"); err == nil {
		t.Error("expected error for a language without a locale file")
	}
	if err := Init("not a language"); err == nil {
		t.Error("expected error for an unparseable language tag")
	}
}

func TestSupportedLocales(t *testing.T) {
	initLang(t, "en")

	got := make(map[string]bool)
	for _, tag := range Supported() {
		got[tag.String()] = true
	}
	if !got["en"] || !got["ru"] {
		t.Errorf("Supported() = %v, want en and ru", got)
	}
}

func TestMiddlewareNegotiatesLanguage(t *testing.T) {
	initLang(t, "en")

	var translated string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		translated = T(r.Context(), "CorrectFeedback")
	}))

	serve := func(target string, acceptLanguage string) string {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if acceptLanguage != "" {
			req.Header.Set("Accept-Language", acceptLanguage)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		return translated
	}

	if got := serve("/lessons", ""); got != "Correct!" {
		t.Errorf("default language: got %q, want 'Correct!'", got)
	}
	if got := serve("/lessons?lang=ru", ""); got != "Верно!" {
		t.Errorf("lang query: got %q, want 'Верно!'", got)
	}
	if got := serve("/lessons", "ru-RU,ru;q=0.9"); got != "Верно!" {
		t.Errorf("Accept-Language: got %q, want 'Верно!'", got)
	}
	// The query parameter outranks the header.
	if got := serve("/lessons?lang=en", "ru"); got != "Correct!" {
		t.Errorf("query over header: got %q, want 'Correct!'", got)
	}
}
