package scan

import "testing"

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		path     string
		wantLang string
		wantOK   bool
	}{
		{"main.go", "go", true},
		{"script.PY", "python", true}, // extension match is case-insensitive
		{"component.tsx", "typescript", true},
		{"README.md", "markdown", true},
		{"config.yaml", "yaml", true},
		{"schema.sql", "sql", true},
		{"legacy.R", "r", true}, // uppercase R extension folds to the same "r" entry as .r
		{"archive.tar.gz", "", false},
		{"no_extension", "", false},
	}

	for _, tc := range cases {
		lang, ok := DetectLanguage(tc.path)
		if ok != tc.wantOK || lang != tc.wantLang {
			t.Errorf("DetectLanguage(%q) = (%q, %v), want (%q, %v)", tc.path, lang, ok, tc.wantLang, tc.wantOK)
		}
	}
}

func TestIsCodeLanguage(t *testing.T) {
	cases := []struct {
		lang string
		want bool
	}{
		{"python", true},
		{"go", true},
		{"rust", true},
		{"markdown", false},
		{"yaml", false},
		{"json", false},
		{"sql", false},
		{"unknown", false},
	}

	for _, tc := range cases {
		if got := IsCodeLanguage(tc.lang); got != tc.want {
			t.Errorf("IsCodeLanguage(%q) = %v, want %v", tc.lang, got, tc.want)
		}
	}
}
