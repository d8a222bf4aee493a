package utils

import (
	"reflect"
	"testing"
)

func TestExtractHashtags(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"none", "plain caption", 10, nil},
		{"basic", "Sunset #travel #beach_day!", 10, []string{"travel", "beach_day"}},
		{"dedup case insensitive", "#Go #go #GO #rust", 10, []string{"Go", "rust"}},
		{"limit", "#a #b #c #d", 2, []string{"a", "b"}},
		{"bare hash", "# nothing #", 10, nil},
		{"adjacent", "#one#two", 10, []string{"one", "two"}},
		{"unicode", "#café time", 10, []string{"café"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractHashtags(tc.text, tc.limit)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractHashtags(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("héllo wörld", 5); got != "héllo" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("short", 34); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("x", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}
