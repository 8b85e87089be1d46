package features

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

const (
	TokenizerRegex = "regex"
	TokenizerProse = "prose"
)

// Tokenizer splits a document into terms. Implementations must be pure.
type Tokenizer interface {
	Tokenize(text string) []string
}

func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case TokenizerRegex, "":
		return regexTokenizer{}, nil
	case TokenizerProse:
		return proseTokenizer{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}

// Runs of two or more letters, digits or underscores.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

type regexTokenizer struct{}

func (regexTokenizer) Tokenize(text string) []string {
	return wordPattern.FindAllString(text, -1)
}

type proseTokenizer struct{}

func (proseTokenizer) Tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return regexTokenizer{}.Tokenize(text)
	}

	tokens := doc.Tokens()
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok.Text) < 2 || !hasWordRune(tok.Text) {
			continue
		}
		out = append(out, tok.Text)
	}
	return out
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
