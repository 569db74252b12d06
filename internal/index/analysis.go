package index

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// Strategy selects how each word of a text field is fragmented into tokens.
type Strategy string

const (
	// StrategyStrict indexes whole words only.
	StrategyStrict Strategy = "strict"
	// StrategyForward indexes every prefix of a word ("gecko" -> g, ge, gec, geck, gecko).
	StrategyForward Strategy = "forward"
	// StrategyReverse indexes every prefix and every suffix of a word.
	// The name is kept for compatibility; no characters are reversed.
	StrategyReverse Strategy = "reverse"
	// StrategyFull indexes every contiguous substring of a word. A word of n
	// runes yields up to n*(n+1)/2 tokens, so memory grows quadratically with
	// word length.
	StrategyFull Strategy = "full"
)

// ParseStrategy resolves a strategy name. The empty name selects StrategyStrict.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", StrategyStrict:
		return StrategyStrict, nil
	case StrategyForward:
		return StrategyForward, nil
	case StrategyReverse:
		return StrategyReverse, nil
	case StrategyFull:
		return StrategyFull, nil
	}
	return "", fmt.Errorf("%w: unknown tokenizer %q", ErrInvalidConfig, name)
}

// Tokenizer exposes the minimal interface required by a field index.
type Tokenizer interface {
	Tokenize(text string) []string
}

// StrategyTokenizer splits text into words and expands each word according to its strategy.
type StrategyTokenizer struct {
	strategy Strategy
}

// NewTokenizer constructs a tokenizer for the given strategy.
func NewTokenizer(strategy Strategy) *StrategyTokenizer {
	return &StrategyTokenizer{strategy: strategy}
}

// TokenizerFor resolves a tokenizer by strategy name.
func TokenizerFor(name string) (*StrategyTokenizer, error) {
	strategy, err := ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	return NewTokenizer(strategy), nil
}

// Strategy reports the configured strategy.
func (t *StrategyTokenizer) Strategy() Strategy {
	return t.strategy
}

// Tokenize returns the distinct tokens for text, in order of first occurrence.
func (t *StrategyTokenizer) Tokenize(text string) []string {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	tokens := make([]string, 0, len(terms))
	emit := func(token string) {
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	for _, term := range terms {
		runes := []rune(term)
		switch t.strategy {
		case StrategyForward:
			emitPrefixes(runes, emit)
		case StrategyReverse:
			emitPrefixes(runes, emit)
			emitSuffixes(runes, emit)
		case StrategyFull:
			for start := 0; start < len(runes); start++ {
				emitPrefixes(runes[start:], emit)
			}
		default:
			emit(term)
		}
	}
	return tokens
}

func emitPrefixes(runes []rune, emit func(string)) {
	for end := 1; end <= len(runes); end++ {
		emit(string(runes[:end]))
	}
}

func emitSuffixes(runes []rune, emit func(string)) {
	for start := len(runes) - 1; start >= 0; start-- {
		emit(string(runes[start:]))
	}
}

// Terms splits text into normalized whole words using UAX#29 word boundaries.
// Segments without a letter or digit (spaces, punctuation) are dropped.
func Terms(text string) []string {
	if text == "" {
		return nil
	}

	segments := words.FromString(text)
	var terms []string
	for segments.Next() {
		segment := segments.Value()
		if !isWord(segment) {
			continue
		}
		terms = append(terms, Normalize(segment))
	}
	return terms
}

// Normalize applies NFKC compatibility folding and lower-casing.
func Normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

func isWord(segment string) bool {
	for _, r := range segment {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
