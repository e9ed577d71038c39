package reasoning

import "regexp"

// Control-token families recognized by the scrubber. Both patterns are fixed
// at design time; no dynamic construction.
var (
	// Generic bracketed control tokens: <|...|> in plain ASCII angle/pipe
	// characters, or the equivalent with fullwidth bracket/pipe code points.
	bracketPattern = regexp.MustCompile(`[<＜][|｜][^|｜<>＜＞]*[|｜][>＞]`)

	// End-of-turn family: a literal <end_of_turn> marker, or fullwidth
	// end-of-sentence markers with underscore or U+2581 separators.
	endTurnPattern = regexp.MustCompile(`<end_of_turn>|<｜end[_▁]of[_▁]sentence｜>`)
)

// Scrub removes control vocabulary from s and returns the clean text along
// with every removed match, in scan order. Scrubbing already-scrubbed text
// returns it unchanged with no matches.
func Scrub(s string) (string, []string) {
	var matches []string
	collect := func(m string) string {
		matches = append(matches, m)
		return ""
	}
	s = bracketPattern.ReplaceAllStringFunc(s, collect)
	s = endTurnPattern.ReplaceAllStringFunc(s, collect)
	return s, matches
}
