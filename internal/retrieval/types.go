package retrieval

// #region config
// Config holds limits for the gated experience retrieval pipeline.
type Config struct {
	Candidates        int     // experiences loaded from the store per query
	TopK              int     // max evidence returned
	MinSharedKeywords int     // Gate 2: keywords a candidate's problem must share with the query
	MinReward         float32 // Gate 2: reward floor for candidates
	MaxEvidenceLen    int     // Gate 3: max chars per evidence string
}

// DefaultConfig returns sensible defaults for retrieval gating.
func DefaultConfig() Config {
	return Config{
		Candidates:        50,
		TopK:              3,
		MinSharedKeywords: 1,
		MinReward:         0.5,
		MaxEvidenceLen:    400,
	}
}

// #endregion config

// #region evidence-record
// EvidenceRecord is one past experience judged relevant to a query.
type EvidenceRecord struct {
	ID     string
	Text   string
	Score  float32 // share of query keywords found in the experience's problem
	Reward float32
}

// #endregion evidence-record

// #region gate-result
// GateResult captures the outcome of the 3-gate retrieval pipeline.
type GateResult struct {
	Gate1Passed bool             // query carried usable keywords
	Gate2Count  int              // candidates above keyword and reward floors
	Gate3Count  int              // candidates passing the consistency check
	Retrieved   []EvidenceRecord // final evidence after all gates
	Reason      string           // human-readable explanation
}

// #endregion gate-result
