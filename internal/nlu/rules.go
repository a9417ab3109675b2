package nlu

import (
	"context"
	"strings"
	"unicode"
)

// Handler inspects raw input and either claims it with a response or
// declines so the next handler can try.
type Handler interface {
	Name() string
	TryHandle(ctx context.Context, text string) (response string, matched bool, err error)
}

// Matcher is a predicate over lower-cased input.
type Matcher func(text string) bool

// Action performs a matched rule. Returning matched=false declines, and
// evaluation continues with the next rule.
type Action func(ctx context.Context, text string) (response string, matched bool, err error)

type Rule struct {
	Name  string
	Match Matcher
	Act   Action
}

// RuleSet is a Handler backed by an ordered rule table. Rules are evaluated
// top to bottom against the lower-cased input; the first rule whose Match
// holds and whose Act does not decline wins.
type RuleSet struct {
	name  string
	rules []Rule
}

func NewRuleSet(name string, rules ...Rule) *RuleSet {
	return &RuleSet{name: name, rules: rules}
}

func (rs *RuleSet) Name() string { return rs.name }

// Rules exposes the table for inspection in tests and help output.
func (rs *RuleSet) Rules() []Rule { return rs.rules }

func (rs *RuleSet) TryHandle(ctx context.Context, text string) (string, bool, error) {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, r := range rs.rules {
		if !r.Match(lower) {
			continue
		}
		resp, ok, err := r.Act(ctx, lower)
		if err != nil {
			return "", true, err
		}
		if ok {
			return resp, true, nil
		}
	}

	return "", false, nil
}

// Reply is an Action that always answers with a fixed response.
func Reply(response string) Action {
	return func(context.Context, string) (string, bool, error) {
		return response, true, nil
	}
}

// --- matchers ---

// Contains holds when any phrase is a substring of the input.
func Contains(phrases ...string) Matcher {
	return func(text string) bool {
		for _, p := range phrases {
			if strings.Contains(text, p) {
				return true
			}
		}
		return false
	}
}

// Equals holds when the whole input equals any phrase, ignoring trailing
// punctuation.
func Equals(phrases ...string) Matcher {
	return func(text string) bool {
		text = strings.TrimRight(text, "?!. ")
		for _, p := range phrases {
			if text == p {
				return true
			}
		}
		return false
	}
}

// Words holds when any of the given words appears as a whole word.
func Words(words ...string) Matcher {
	return func(text string) bool {
		for _, tok := range Tokens(text) {
			for _, w := range words {
				if tok == w {
					return true
				}
			}
		}
		return false
	}
}

func All(ms ...Matcher) Matcher {
	return func(text string) bool {
		for _, m := range ms {
			if !m(text) {
				return false
			}
		}
		return true
	}
}

func Any(ms ...Matcher) Matcher {
	return func(text string) bool {
		for _, m := range ms {
			if m(text) {
				return true
			}
		}
		return false
	}
}

func Not(m Matcher) Matcher {
	return func(text string) bool { return !m(text) }
}

// Tokens splits text into words, dropping punctuation other than
// apostrophes.
func Tokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// --- extractors ---

// After returns the trimmed text following the first occurrence of any
// phrase, or "" when none occurs.
func After(text string, phrases ...string) string {
	for _, p := range phrases {
		if i := strings.Index(text, p); i >= 0 {
			return Clean(text[i+len(p):])
		}
	}
	return ""
}

// AfterLast returns the text after the last occurrence of the first phrase
// that occurs at all.
func AfterLast(text string, phrases ...string) string {
	for _, p := range phrases {
		if i := strings.LastIndex(text, p); i >= 0 {
			return Clean(text[i+len(p):])
		}
	}
	return ""
}

// Strip removes every occurrence of the phrases and collapses whitespace.
func Strip(text string, phrases ...string) string {
	for _, p := range phrases {
		text = strings.ReplaceAll(text, p, " ")
	}
	return Clean(text)
}

// StripWords removes whole words.
func StripWords(text string, words ...string) string {
	drop := make(map[string]bool, len(words))
	for _, w := range words {
		drop[w] = true
	}

	var kept []string
	for _, f := range strings.Fields(text) {
		if !drop[strings.Trim(f, "?!.,")] {
			kept = append(kept, f)
		}
	}
	return Clean(strings.Join(kept, " "))
}

// Clean collapses whitespace and trims trailing question marks and
// sentence punctuation.
func Clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(strings.TrimRight(s, "?!. "))
}
