package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/experience"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region retriever
// Retriever finds past experiences whose problems resemble a query. It serves as
// the builder's optional context provider.
type Retriever struct {
	store  experience.Store
	config Config
}

// NewRetriever creates a Retriever over an experience store.
func NewRetriever(store experience.Store, config Config) *Retriever {
	return &Retriever{store: store, config: config}
}

// #endregion retriever

// #region retrieve
// Retrieve runs the 3-gate pipeline:
//  1. Gate 1: the query must carry at least one non-stopword keyword
//  2. Gate 2: candidates from the store must share enough keywords and clear the reward floor
//  3. Gate 3: consistency (non-empty, bounded length, no duplicate problems)
func (r *Retriever) Retrieve(ctx context.Context, query string) (GateResult, error) {
	result := GateResult{}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		result.Reason = "gate1: query has no keywords"
		return result, nil
	}
	result.Gate1Passed = true

	candidates, err := r.store.LoadTop(ctx, r.config.Candidates)
	if err != nil {
		return result, fmt.Errorf("retrieval load: %w", err)
	}

	var gate2 []EvidenceRecord
	for _, exp := range candidates {
		if exp.Reward < r.config.MinReward {
			continue
		}
		docTokens := tokenize(exp.Chain.Problem)
		if sharedKeywords(queryTokens, docTokens) < r.config.MinSharedKeywords {
			continue
		}
		gate2 = append(gate2, EvidenceRecord{
			ID:     exp.ID,
			Text:   describe(exp),
			Score:  overlap(queryTokens, docTokens),
			Reward: exp.Reward,
		})
	}
	result.Gate2Count = len(gate2)
	if result.Gate2Count == 0 {
		result.Reason = "gate2: no experience shares the query's keywords"
		return result, nil
	}

	sort.SliceStable(gate2, func(i, j int) bool {
		if gate2[i].Score != gate2[j].Score {
			return gate2[i].Score > gate2[j].Score
		}
		return gate2[i].Reward > gate2[j].Reward
	})

	gate3 := r.consistencyCheck(gate2)
	if r.config.TopK > 0 && len(gate3) > r.config.TopK {
		gate3 = gate3[:r.config.TopK]
	}
	result.Gate3Count = len(gate3)
	result.Retrieved = gate3

	if result.Gate3Count == 0 {
		result.Reason = "gate3: all results failed consistency check"
	} else {
		result.Reason = fmt.Sprintf("retrieved %d evidence items (gate2=%d, gate3=%d)",
			result.Gate3Count, result.Gate2Count, result.Gate3Count)
	}
	return result, nil
}

// Context implements signals.ContextProvider: retrieved evidence, one item per line.
func (r *Retriever) Context(ctx context.Context, query string) (string, error) {
	res, err := r.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	lines := make([]string, len(res.Retrieved))
	for i, ev := range res.Retrieved {
		lines[i] = "- " + ev.Text
	}
	return strings.Join(lines, "\n"), nil
}

// #endregion retrieve

// #region consistency-check
// consistencyCheck drops empty or overlong evidence and repeated texts.
func (r *Retriever) consistencyCheck(results []EvidenceRecord) []EvidenceRecord {
	seen := make(map[string]bool)
	var valid []EvidenceRecord

	for _, rec := range results {
		if rec.Text == "" {
			continue
		}
		if r.config.MaxEvidenceLen > 0 && len(rec.Text) > r.config.MaxEvidenceLen {
			continue
		}
		if seen[rec.Text] {
			continue
		}
		seen[rec.Text] = true
		valid = append(valid, rec)
	}
	return valid
}

// #endregion consistency-check

// #region describe
// describe renders an experience as one evidence line.
func describe(exp state.Experience) string {
	problem := strings.TrimSpace(exp.Chain.Problem)
	if problem == "" {
		return ""
	}
	anchors := make([]string, len(exp.Chain.AnchorsHit))
	for i, a := range exp.Chain.AnchorsHit {
		anchors[i] = a.String()
	}
	cycle := "open"
	if exp.Chain.CycleComplete {
		cycle = "complete"
	}
	return fmt.Sprintf("%s (reward %.2f, %d steps, anchors [%s], cycle %s, path %s)",
		problem, exp.Reward, len(exp.Chain.Steps), strings.Join(anchors, " "), cycle, path(exp.Chain.Positions()))
}

func path(ps []position.Position) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = fmt.Sprint(int(p))
	}
	return strings.Join(parts, ">")
}

// #endregion describe
