package drift

// #region config

// Config holds drift detector thresholds and intervention parameters.
type Config struct {
	WindowSize          int     // trailing steps used to fit the subspace
	Components          int     // top-k variance directions kept
	ConfidenceThreshold float32 // flag when captured ratio falls below this
	DivergenceThreshold float32 // flag when mean channel divergence exceeds this
	Magnification       float32 // intervention scale on the projected deviation, in [1.3, 2.0]
	ConfidenceBoost     float32 // multiplier applied to a repaired step's confidence
	PowerIterations     int     // max iterations per eigenvector
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:          8,
		Components:          2,
		ConfidenceThreshold: 0.5,
		DivergenceThreshold: 0.15,
		Magnification:       1.5,
		ConfidenceBoost:     1.15,
		PowerIterations:     100,
	}
}

// #endregion config

// #region subspace

// Dim is the width of one window row: character, logic, affect, confidence, position.
const Dim = 5

// Vector is one normalized window row.
type Vector [Dim]float64

// Subspace is a fitted low-rank reference for one window. Never shared across chains.
type Subspace struct {
	Mean          Vector
	Basis         []Vector // orthonormal top-k directions
	Eigenvalues   []float64
	CapturedRatio float64
	Rows          int
	Degenerate    bool
}

// #endregion subspace

// #region outcome

// Outcome reports one inline drift inspection at an anchor step.
type Outcome struct {
	Step          int
	Flagged       bool
	Intervened    bool
	Degenerate    bool
	Score         float32
	Divergence    float32
	ConfidenceIn  float32
	ConfidenceOut float32
}

// #endregion outcome
