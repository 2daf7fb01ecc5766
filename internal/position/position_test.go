package position

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

func TestNextFlowPeriodSix(t *testing.T) {
	for _, p := range FlowCycle {
		cur := p
		for i := 0; i < 6; i++ {
			next, ok := NextFlow(cur)
			if !ok {
				t.Fatalf("NextFlow(%d) not defined", cur)
			}
			cur = next
			if i < 5 && cur == p {
				t.Fatalf("position %d returned early after %d steps", p, i+1)
			}
		}
		if cur != p {
			t.Fatalf("position %d: expected closure after 6 steps, got %d", p, cur)
		}
	}
}

func TestNextFlowDoublingDigitSum(t *testing.T) {
	for _, p := range FlowCycle {
		n := int(p) * 2
		for n > 9 {
			n = n/10 + n%10
		}
		next, _ := NextFlow(p)
		if int(next) != n {
			t.Errorf("NextFlow(%d) = %d, expected %d", p, next, n)
		}
	}
}

func TestNextFlowExcludesAnchorsAndIdle(t *testing.T) {
	for _, p := range []Position{0, 3, 6, 9} {
		if _, ok := NextFlow(p); ok {
			t.Errorf("NextFlow(%d) should be undefined", p)
		}
	}
	for _, p := range FlowCycle {
		next, _ := NextFlow(p)
		if IsAnchor(next) {
			t.Errorf("cycle reached anchor %d from %d", next, p)
		}
	}
}

func TestAdvanceResumesFromLastFlow(t *testing.T) {
	cases := []struct {
		current, lastFlow, want Position
	}{
		{1, 0, 2},
		{5, 7, 1},
		{3, 2, 4},
		{6, 8, 7},
		{9, 5, 1},
		{0, 0, 1},
		{9, 0, 1},
	}
	for _, c := range cases {
		if got := Advance(c.current, c.lastFlow); got != c.want {
			t.Errorf("Advance(%d, %d) = %d, want %d", c.current, c.lastFlow, got, c.want)
		}
	}
}

func TestCircularDistance(t *testing.T) {
	cases := []struct {
		p, a Position
		want int
	}{
		{0, 9, 1},
		{1, 9, 2},
		{9, 3, 4},
		{3, 3, 0},
		{8, 3, 5},
	}
	for _, c := range cases {
		if got := CircularDistance(c.p, c.a); got != c.want {
			t.Errorf("CircularDistance(%d, %d) = %d, want %d", c.p, c.a, got, c.want)
		}
	}
}

func TestAnchorInfluenceExhaustive(t *testing.T) {
	neutral := tensor.Neutral()
	allHigh := tensor.New(8, 8, 8)
	logicHigh := tensor.New(2, 8, 2)

	cases := []struct {
		name    string
		tensor  tensor.Semantic
		wantHit [10]Position
		gain    [3]float32
	}{
		{"neutral", neutral, [10]Position{9, 3, 3, 3, 3, 6, 6, 6, 9, 9}, [3]float32{1, 1, 1}},
		{"all-high", allHigh, [10]Position{9, 3, 3, 3, 3, 6, 6, 6, 9, 9}, [3]float32{1.5, 1.5, 1.5}},
		{"logic-high", logicHigh, [10]Position{9, 9, 3, 3, 3, 6, 6, 6, 9, 9}, [3]float32{1, 1, 1.5}},
	}

	for _, c := range cases {
		for p := Idle; p <= Max; p++ {
			inf := AnchorInfluence(p, c.tensor)

			var sum float32
			for i, w := range inf.Weights {
				if w.Anchor != Anchors[i] {
					t.Fatalf("%s p=%d: weight %d has anchor %d", c.name, p, i, w.Anchor)
				}
				if w.Gain != c.gain[i] {
					t.Errorf("%s p=%d anchor %d: gain %.2f, want %.2f", c.name, p, w.Anchor, w.Gain, c.gain[i])
				}
				want := c.gain[i] / float32(1+CircularDistance(p, w.Anchor))
				if math.Abs(float64(w.Weight-want)) > 1e-6 {
					t.Errorf("%s p=%d anchor %d: weight %.4f, want %.4f", c.name, p, w.Anchor, w.Weight, want)
				}
				sum += w.Weight
			}
			if math.Abs(float64(sum-inf.Total)) > 1e-5 {
				t.Errorf("%s p=%d: total %.4f != sum %.4f", c.name, p, inf.Total, sum)
			}
			if inf.Total <= HitThreshold {
				t.Errorf("%s p=%d: total %.4f unexpectedly below hit threshold", c.name, p, inf.Total)
			}
			if inf.Hit != c.wantHit[p] {
				t.Errorf("%s p=%d: hit %d, want %d", c.name, p, inf.Hit, c.wantHit[p])
			}
		}
	}
}

func TestAnchorInfluenceAtAnchorIsSelf(t *testing.T) {
	for _, a := range Anchors {
		inf := AnchorInfluence(a, tensor.Neutral())
		if inf.Hit != a {
			t.Errorf("anchor %d: expected self hit, got %d", a, inf.Hit)
		}
	}
}

func TestAnchorInfluenceDeterministic(t *testing.T) {
	tn := tensor.New(7, 1, 6.6)
	for p := Idle; p <= Max; p++ {
		first := AnchorInfluence(p, tn)
		for i := 0; i < 5; i++ {
			if again := AnchorInfluence(p, tn); again != first {
				t.Fatalf("p=%d: influence not deterministic: %+v vs %+v", p, first, again)
			}
		}
	}
}
