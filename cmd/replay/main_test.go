package main

import (
	"testing"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

func TestReverify(t *testing.T) {
	e := state.Experience{ID: "e1", Chain: state.Chain{ID: "c1"}, Verification: state.VerificationResult{Passed: true}}
	v := state.VerificationResult{
		Passed: false,
		Issues: []state.Issue{
			{Check: "confidence", Step: 2},
			{Check: "confidence", Step: 4},
			{Check: "cycle", Step: -1},
		},
	}

	row := reverify(e, v)
	if !row.Stored || row.Replayed {
		t.Errorf("unexpected verdicts %+v", row)
	}
	if row.Summary != "confidence,cycle" {
		t.Errorf("expected deduplicated checks, got %q", row.Summary)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 16); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdefgh", 5); got != "abcd~" {
		t.Errorf("got %q", got)
	}
}
