package index

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

func TestTokenizerStrategies(t *testing.T) {
	cases := []struct {
		strategy Strategy
		want     []string
	}{
		{StrategyStrict, []string{"gecko"}},
		{StrategyForward, []string{"g", "ge", "gec", "geck", "gecko"}},
		{StrategyReverse, []string{"g", "ge", "gec", "geck", "gecko", "o", "ko", "cko", "ecko"}},
		{StrategyFull, []string{
			"g", "ge", "gec", "geck", "gecko",
			"e", "ec", "eck", "ecko",
			"c", "ck", "cko",
			"k", "ko",
			"o",
		}},
	}

	for _, tc := range cases {
		t.Run(string(tc.strategy), func(t *testing.T) {
			got := NewTokenizer(tc.strategy).Tokenize("Gecko")
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("tokens mismatch:\n got %v\nwant %v", got, tc.want)
			}
		})
	}
}

func TestFullTokenizerCount(t *testing.T) {
	tokens := NewTokenizer(StrategyFull).Tokenize("abcdefgh")
	if len(tokens) != 8*9/2 {
		t.Fatalf("expected %d substrings of distinct runes, got %d", 8*9/2, len(tokens))
	}
}

func TestTokenizerSplitsOnPunctuationAndCase(t *testing.T) {
	got := NewTokenizer(StrategyStrict).Tokenize("Mozilla Firefox, SPIDER-monkey!")
	want := []string{"mozilla", "firefox", "spider", "monkey"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTokenizerDeduplicates(t *testing.T) {
	got := NewTokenizer(StrategyForward).Tokenize("go gopher go")
	want := []string{"g", "go", "gop", "goph", "gophe", "gopher"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTokenizerEmptyInput(t *testing.T) {
	for _, strategy := range []Strategy{StrategyStrict, StrategyForward, StrategyReverse, StrategyFull} {
		if tokens := NewTokenizer(strategy).Tokenize(""); len(tokens) != 0 {
			t.Fatalf("%s: expected no tokens for empty text, got %v", strategy, tokens)
		}
		if tokens := NewTokenizer(strategy).Tokenize(" ,.; "); len(tokens) != 0 {
			t.Fatalf("%s: expected no tokens for punctuation, got %v", strategy, tokens)
		}
	}
}

func TestTokenizerIsIdempotent(t *testing.T) {
	text := "Google Chrome on Chromium"
	for _, strategy := range []Strategy{StrategyStrict, StrategyForward, StrategyReverse, StrategyFull} {
		tokenizer := NewTokenizer(strategy)
		first := tokenizer.Tokenize(text)
		second := tokenizer.Tokenize(text)
		sort.Strings(first)
		sort.Strings(second)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("%s: tokenization not stable", strategy)
		}
	}
}

func TestTokenizerHandlesMultibyteRunes(t *testing.T) {
	got := NewTokenizer(StrategyForward).Tokenize("Ñandú")
	want := []string{"ñ", "ña", "ñan", "ñand", "ñandú"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNormalizeFoldsCompatibilityForms(t *testing.T) {
	if got := Normalize("ＣＨＲＯＭＥ"); got != "chrome" {
		t.Fatalf("expected full-width letters to fold to chrome, got %q", got)
	}
}

func TestParseStrategy(t *testing.T) {
	cases := []struct {
		name    string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyStrict, false},
		{"strict", StrategyStrict, false},
		{" Forward ", StrategyForward, false},
		{"reverse", StrategyReverse, false},
		{"full", StrategyFull, false},
		{"ngram", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseStrategy(tc.name)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func BenchmarkTokenize(b *testing.B) {
	text := "Mozilla Firefox Gecko Google Chrome Chromium Microsoft Edge Apple Safari Webkit"
	for _, strategy := range []Strategy{StrategyStrict, StrategyForward, StrategyReverse, StrategyFull} {
		tokenizer := NewTokenizer(strategy)
		b.Run(string(strategy), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Tokenize(text)
			}
		})
	}
}
