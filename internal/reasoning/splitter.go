// Package reasoning splits raw model output into a reasoning ("thought")
// segment and a user-facing answer, and scrubs control vocabulary before text
// leaves the session boundary.
package reasoning

import "strings"

// Phase reports whether the model is still inside a reasoning segment.
type Phase string

const (
	PhaseThinking  Phase = "thinking"
	PhaseAnswering Phase = "answering"
)

const (
	openTag  = "<think>"
	closeTag = "</think>"
)

// SplitResult is the projection of a raw buffer after an increment.
type SplitResult struct {
	Thought string
	Answer  string
	Phase   Phase
}

// Split separates the first delimited reasoning segment from the answer.
// Only the first open tag and the first close tag after it are considered;
// once a thought has closed, the turn is answering even if more text follows.
func Split(raw string) SplitResult {
	start := strings.Index(raw, openTag)
	if start < 0 {
		return SplitResult{Answer: raw, Phase: PhaseAnswering}
	}

	thinkStart := start + len(openTag)
	end := strings.Index(raw[thinkStart:], closeTag)
	if end < 0 {
		// Open but not yet closed: everything after the tag is thought,
		// any pre-amble before it is answer.
		return SplitResult{
			Thought: raw[thinkStart:],
			Answer:  raw[:start],
			Phase:   PhaseThinking,
		}
	}
	end += thinkStart
	return SplitResult{
		Thought: strings.TrimSpace(raw[thinkStart:end]),
		Answer:  raw[end+len(closeTag):],
		Phase:   PhaseAnswering,
	}
}
