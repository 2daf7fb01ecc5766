package tensor

import (
	"math"
	"testing"
)

func TestClampBounds(t *testing.T) {
	s := Semantic{Character: -2, Logic: 12, Affect: 4}.Clamp()
	if s.Character != Min || s.Logic != Max || s.Affect != 4 {
		t.Fatalf("unexpected clamp result: %+v", s)
	}
}

func TestClampScrubsNaN(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	s := Semantic{Character: nan, Logic: inf, Affect: 1}.Clamp()
	if !s.InRange() {
		t.Fatalf("expected in-range tensor, got %+v", s)
	}
	if s.Character != Min+Range/2 {
		t.Errorf("NaN should become midpoint, got %f", s.Character)
	}
}

func TestClampDelta(t *testing.T) {
	d := ClampDelta(Semantic{Character: 100, Logic: -100, Affect: float32(math.NaN())})
	if d.Character != Range || d.Logic != -Range || d.Affect != 0 {
		t.Fatalf("unexpected delta clamp: %+v", d)
	}
}

func TestDistance(t *testing.T) {
	a := New(0, 0, 0)
	b := New(3, 4, 0)
	if got := Distance(a, b); math.Abs(float64(got-5)) > 1e-6 {
		t.Fatalf("expected 5, got %f", got)
	}
	if Distance(a, a) != 0 {
		t.Fatal("distance to self should be 0")
	}
}

func TestGetWithRoundTrip(t *testing.T) {
	s := Neutral()
	for _, c := range Channels {
		s = s.With(c, float32(c)+1)
	}
	for _, c := range Channels {
		if s.Get(c) != float32(c)+1 {
			t.Errorf("channel %s: expected %f, got %f", c, float32(c)+1, s.Get(c))
		}
	}
	if FromArray(s.Array()) != s {
		t.Error("array round trip mismatch")
	}
}
