package i18n

import (
	"strings"
	"testing"
)

func TestTranslateSubstitution(t *testing.T) {
	t.Parallel()
	tr := NewTranslator()

	got := tr.Translate("partners.body", "en", map[string]string{
		"invited": "3",
		"status":  "locked",
		"code":    "ref_42",
	})
	for _, want := range []string{"3", "locked", "ref_42"} {
		if !strings.Contains(got, want) {
			t.Errorf("translation %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "{") {
		t.Errorf("unsubstituted placeholder left in %q", got)
	}
}

func TestTranslateFallbacks(t *testing.T) {
	t.Parallel()
	tr := NewTranslator()

	cases := []struct {
		name string
		key  string
		lang string
		want string
	}{
		{"known language", "help.body", "ru", "Команды"},
		{"unknown language falls back", "help.body", "de", "Available commands"},
		{"unknown key renders key", "no.such.key", "en", "no.such.key"},
	}
	for _, tc := range cases {
		got := tr.Translate(tc.key, tc.lang, nil)
		if !strings.Contains(got, tc.want) {
			t.Errorf("%s: got %q, want it to contain %q", tc.name, got, tc.want)
		}
	}
}
