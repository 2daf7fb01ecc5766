package metrics

import (
	"math"
	"sync/atomic"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region recorder

// Recorder counts events with atomics. Writers never wait on readers.
type Recorder struct {
	steps         atomic.Int64
	oracleOK      atomic.Int64
	oracleFall    atomic.Int64
	anchorHits    [position.Max + 1]atomic.Int64
	driftFlags    atomic.Int64
	interventions atomic.Int64
	verifyPass    atomic.Int64
	verifyFail    atomic.Int64
	discovery     rewardStat
	alignment     rewardStat
}

// rewardStat keeps a float sum as raw bits so it can be updated with CAS.
type rewardStat struct {
	sumBits atomic.Uint64
	count   atomic.Int64
}

func (r *rewardStat) add(v float32) {
	for {
		old := r.sumBits.Load()
		next := math.Float64bits(math.Float64frombits(old) + float64(v))
		if r.sumBits.CompareAndSwap(old, next) {
			break
		}
	}
	r.count.Add(1)
}

func (r *rewardStat) snapshot() RewardSnapshot {
	n := r.count.Load()
	s := RewardSnapshot{Count: n}
	if n > 0 {
		s.Mean = math.Float64frombits(r.sumBits.Load()) / float64(n)
	}
	return s
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) StepTaken() { r.steps.Add(1) }

func (r *Recorder) OracleCall(outcome string) {
	if outcome == OutcomeOK {
		r.oracleOK.Add(1)
		return
	}
	r.oracleFall.Add(1)
}

func (r *Recorder) AnchorHit(anchor position.Position) {
	if anchor.Valid() {
		r.anchorHits[anchor].Add(1)
	}
}

func (r *Recorder) DriftFlagged() { r.driftFlags.Add(1) }

func (r *Recorder) InterventionApplied() { r.interventions.Add(1) }

func (r *Recorder) Verified(passed bool) {
	if passed {
		r.verifyPass.Add(1)
		return
	}
	r.verifyFail.Add(1)
}

func (r *Recorder) Rewarded(stage state.Stage, reward float32) {
	if stage == state.StageAlignment {
		r.alignment.add(reward)
		return
	}
	r.discovery.add(reward)
}

// #endregion recorder

// #region snapshot

// RewardSnapshot is the running mean reward of one stage.
type RewardSnapshot struct {
	Mean  float64 `json:"mean"`
	Count int64   `json:"count"`
}

// Snapshot is a read-only copy of the counters. Counters are read independently,
// so a snapshot taken mid-update may be off by in-flight events.
type Snapshot struct {
	Steps          int64                          `json:"steps"`
	OracleOK       int64                          `json:"oracle_ok"`
	OracleFallback int64                          `json:"oracle_fallback"`
	AnchorHits     map[string]int64               `json:"anchor_hits"`
	DriftFlags     int64                          `json:"drift_flags"`
	Interventions  int64                          `json:"interventions"`
	VerifyPassed   int64                          `json:"verify_passed"`
	VerifyFailed   int64                          `json:"verify_failed"`
	Rewards        map[state.Stage]RewardSnapshot `json:"rewards"`
}

// Snapshot returns the current counter values.
func (r *Recorder) Snapshot() Snapshot {
	s := Snapshot{
		Steps:          r.steps.Load(),
		OracleOK:       r.oracleOK.Load(),
		OracleFallback: r.oracleFall.Load(),
		AnchorHits:     make(map[string]int64, len(position.Anchors)),
		DriftFlags:     r.driftFlags.Load(),
		Interventions:  r.interventions.Load(),
		VerifyPassed:   r.verifyPass.Load(),
		VerifyFailed:   r.verifyFail.Load(),
		Rewards: map[state.Stage]RewardSnapshot{
			state.StageDiscovery: r.discovery.snapshot(),
			state.StageAlignment: r.alignment.snapshot(),
		},
	}
	for _, a := range position.Anchors {
		s.AnchorHits[a.String()] = r.anchorHits[a].Load()
	}
	return s
}

// #endregion snapshot
