package match

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Prefers Dark Mode", "prefers dark mode"},
		{"trims and collapses whitespace", "  uses   vim \t daily  ", "uses vim daily"},
		{"strips punctuation", "works at Acme, Inc.!", "works at acme inc"},
		{"keeps digits", "wakes up at 6am", "wakes up at 6am"},
		{"empty", "", ""},
		{"punctuation only", "?!,.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSimilarity_ExactAfterNormalization(t *testing.T) {
	if got := Similarity("Prefers dark mode!", "prefers   dark mode"); got != 1.0 {
		t.Errorf("expected 1.0 for normalized-equal strings, got %f", got)
	}
}

func TestSimilarity_Empty(t *testing.T) {
	if got := Similarity("", "something"); got != 0.0 {
		t.Errorf("expected 0.0 against empty, got %f", got)
	}
	if got := Similarity("", ""); got != 1.0 {
		t.Errorf("expected 1.0 for two empties, got %f", got)
	}
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{
		{"prefers dark mode", "prefers light mode"},
		{"drinks coffee every morning", "drinks tea"},
		{"abc", "xyz"},
		{"martha", "marhta"},
	}
	for _, p := range pairs {
		got := Similarity(p[0], p[1])
		if got < 0.0 || got > 1.0 {
			t.Errorf("Similarity(%q, %q) = %f out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	a, b := "prefers dark mode editors", "prefers light mode editors"
	if Similarity(a, b) != Similarity(b, a) {
		t.Errorf("similarity is not symmetric for %q / %q", a, b)
	}
}

func TestSimilarity_CloserBeatsFarther(t *testing.T) {
	base := "uses vim for editing"
	near := Similarity(base, "uses vim for editing code")
	far := Similarity(base, "enjoys hiking on weekends")
	if near <= far {
		t.Errorf("expected close variant (%f) to outscore unrelated (%f)", near, far)
	}
}

func TestSimilarity_PrefixBoost(t *testing.T) {
	// Same edits, but one pair shares a prefix; Winkler should favor it.
	withPrefix := Similarity("martha", "marhta")
	withoutPrefix := Similarity("amrtha", "amrhta")
	if withPrefix < withoutPrefix {
		t.Errorf("expected shared-prefix pair (%f) >= shuffled pair (%f)", withPrefix, withoutPrefix)
	}
	if withPrefix < 0.9 {
		t.Errorf("martha/marhta expected above 0.9, got %f", withPrefix)
	}
}

func TestFindBestMatch(t *testing.T) {
	items := []string{
		"prefers dark mode",
		"drinks coffee every morning",
		"uses vim for editing",
	}
	id := func(s string) string { return s }

	result, ok := FindBestMatch("prefers dark modes", items, id, 0.7)
	if !ok {
		t.Fatal("expected a match above threshold")
	}
	if result.Item != "prefers dark mode" {
		t.Errorf("matched %q, want %q", result.Item, "prefers dark mode")
	}
	if result.Score <= 0.7 || result.Score > 1.0 {
		t.Errorf("score %f outside expected range", result.Score)
	}
}

func TestFindBestMatch_BelowThreshold(t *testing.T) {
	items := []string{"prefers dark mode"}
	if _, ok := FindBestMatch("enjoys hiking", items, func(s string) string { return s }, 0.7); ok {
		t.Error("expected no match for unrelated query")
	}
}

func TestFindBestMatch_Empty(t *testing.T) {
	if _, ok := FindBestMatch("anything", nil, func(s string) string { return s }, 0.5); ok {
		t.Error("expected no match on empty item set")
	}
}
