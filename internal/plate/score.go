package plate

import (
	"regexp"
	"strings"
)

// Score limits and adjustments.
const (
	MinAlnum = 4
	MaxAlnum = 8

	HyphenBonus   = 6
	HyphenPenalty = 10
)

// Layout is one plate-numbering pattern with the bonus it earns.
type Layout struct {
	Name  string
	Bonus int
	re    *regexp.Regexp
}

// Layouts are tried in order; only the first match contributes its bonus.
var Layouts = []Layout{
	{Name: "LLL-DDDD", Bonus: 120, re: regexp.MustCompile(`^[A-Z]{3}-?\d{4}$`)},
	{Name: "LL-DDDD", Bonus: 110, re: regexp.MustCompile(`^[A-Z]{2}-?\d{4}$`)},
	{Name: "LLDDDDD", Bonus: 95, re: regexp.MustCompile(`^[A-Z]{2}\d{5}$`)},
	{Name: "fallback", Bonus: 40, re: regexp.MustCompile(`^[A-Z0-9]{4,10}$`)},
}

// Candidate is the best plate-like token found in one frame's text.
type Candidate struct {
	// Text is the winning token in wire format (no hyphen).
	Text string `json:"text"`

	// Score is the token's plausibility score; always > 0 for a real candidate.
	Score int `json:"score"`
}

// Breakdown explains how a token's score was assembled.
type Breakdown struct {
	Token         string `json:"token"`
	AlnumCount    int    `json:"alnum_count"`
	Rejected      bool   `json:"rejected"`
	Layout        string `json:"layout,omitempty"`
	LayoutBonus   int    `json:"layout_bonus"`
	HyphenBonus   int    `json:"hyphen_bonus"`
	HyphenPenalty int    `json:"hyphen_penalty"`
	Total         int    `json:"total"`
}

// Explain scores a cleaned token and reports every contribution.
//
// The token is expected to be the output of Normalize. Rejected tokens have
// Total 0.
func Explain(token string) Breakdown {
	b := Breakdown{Token: token}

	hasLetter, hasDigit := false, false
	for _, r := range token {
		switch {
		case isLetter(r):
			hasLetter = true
			b.AlnumCount++
		case isDigit(r):
			hasDigit = true
			b.AlnumCount++
		}
	}

	if b.AlnumCount < MinAlnum || b.AlnumCount > MaxAlnum || !hasLetter || !hasDigit {
		b.Rejected = true
		return b
	}

	for _, l := range Layouts {
		if l.re.MatchString(token) {
			b.Layout = l.Name
			b.LayoutBonus = l.Bonus
			break
		}
	}

	if strings.Contains(token, "-") {
		b.HyphenBonus = HyphenBonus
		if !splitsInTwo(token) {
			b.HyphenPenalty = HyphenPenalty
		}
	}

	b.Total = b.AlnumCount + b.LayoutBonus + b.HyphenBonus - b.HyphenPenalty
	return b
}

// Score returns the plausibility score of a cleaned token, 0 when rejected.
func Score(token string) int {
	return Explain(token).Total
}

// splitsInTwo reports whether the hyphen divides s into exactly two
// non-empty parts, as in "ABC-1234".
func splitsInTwo(s string) bool {
	parts := strings.Split(s, "-")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// Tokens splits raw recognized text on whitespace, dropping empty tokens.
func Tokens(raw string) []string {
	return strings.Fields(strings.ReplaceAll(raw, "\n", " "))
}

// PickBest returns the highest-scoring plate candidate in raw.
//
// Every whitespace-separated token is cleaned with Normalize and scored. The
// first token with the strictly highest positive score wins. The returned
// Candidate carries the token in WireFormat.
//
// Returns false when no token scores above zero.
func PickBest(raw string) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)

	for _, tok := range Tokens(raw) {
		cleaned := Normalize(tok)
		sc := Score(cleaned)
		if sc <= 0 {
			continue
		}
		if !found || sc > best.Score {
			best = Candidate{Text: WireFormat(cleaned), Score: sc}
			found = true
		}
	}

	return best, found
}
