package snr

import (
	"math"
	"math/rand"
	"testing"
)

func TestChirpMass_EqualMassIdentity(t *testing.T) {
	// Mc = m 2^(-1/5) for equal component masses.
	for _, m := range []float64{1.4, 30.0} {
		want := m * math.Pow(2, -0.2)
		if got := ChirpMass(m, m); math.Abs(got-want) > 1e-12 {
			t.Errorf("ChirpMass(%g, %g) = %g, want %g", m, m, got, want)
		}
	}
	if ChirpMass(30, 1.4) != ChirpMass(1.4, 30) {
		t.Error("chirp mass should be symmetric")
	}
}

func TestScore_ReferenceSystemHitsReferenceSNR(t *testing.T) {
	s := NewInspiralScorer()
	// Equal masses chosen so the chirp mass equals McRef exactly.
	m := s.McRef * math.Pow(2, 0.2)
	batch := map[string][]float64{
		"mass_1":              {m},
		"mass_2":              {m},
		"luminosity_distance": {s.DistRef},
	}
	scores, err := s.Score(batch, "luminosity_distance")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(scores[0]-s.RhoRef) > 1e-9 {
		t.Errorf("reference system SNR = %g, want %g", scores[0], s.RhoRef)
	}
}

func TestScore_ScalesInverselyWithDistance(t *testing.T) {
	s := NewInspiralScorer()
	batch := map[string][]float64{
		"mass_1":              {30, 30},
		"mass_2":              {30, 30},
		"luminosity_distance": {800, 1600},
	}
	scores, err := s.Score(batch, "luminosity_distance")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(scores[0]-2*scores[1]) > 1e-9 {
		t.Errorf("halving the distance should double the SNR: %g vs %g", scores[0], scores[1])
	}
}

func TestScore_AngleFactorNeverExceedsOptimal(t *testing.T) {
	s := NewInspiralScorer()
	rng := rand.New(rand.NewSource(13))
	n := 5000
	batch := map[string][]float64{
		"mass_1":              make([]float64, n),
		"mass_2":              make([]float64, n),
		"luminosity_distance": make([]float64, n),
		"ra":                  make([]float64, n),
		"dec":                 make([]float64, n),
		"theta_jn":            make([]float64, n),
		"psi":                 make([]float64, n),
	}
	optimal := map[string][]float64{
		"mass_1":              batch["mass_1"],
		"mass_2":              batch["mass_2"],
		"luminosity_distance": batch["luminosity_distance"],
	}
	for i := 0; i < n; i++ {
		batch["mass_1"][i] = 25 + 10*rng.Float64()
		batch["mass_2"][i] = 10 + 10*rng.Float64()
		batch["luminosity_distance"][i] = 500 + 3000*rng.Float64()
		batch["ra"][i] = 2 * math.Pi * rng.Float64()
		batch["dec"][i] = math.Asin(2*rng.Float64() - 1)
		batch["theta_jn"][i] = math.Acos(2*rng.Float64() - 1)
		batch["psi"][i] = math.Pi * rng.Float64()
	}
	withAngles, err := s.Score(batch, "luminosity_distance")
	if err != nil {
		t.Fatal(err)
	}
	atOptimal, err := s.Score(optimal, "luminosity_distance")
	if err != nil {
		t.Fatal(err)
	}
	belowHalf := 0
	for i := range withAngles {
		if withAngles[i] > atOptimal[i]+1e-9 {
			t.Fatalf("row %d: projected SNR %g exceeds optimal %g", i, withAngles[i], atOptimal[i])
		}
		if withAngles[i] < 0 {
			t.Fatalf("row %d: negative SNR %g", i, withAngles[i])
		}
		if withAngles[i] < 0.5*atOptimal[i] {
			belowHalf++
		}
	}
	// Isotropic orientations spread the projection well below optimal for
	// a sizable share of events.
	if belowHalf < n/4 {
		t.Errorf("only %d of %d events project below half optimal; expected many more", belowHalf, n)
	}
}

func TestProjectionFactor_OverheadFaceOnIsOptimal(t *testing.T) {
	// Source at the zenith (dec = pi/2 puts theta at 0), face on.
	got := projectionFactor(0, math.Pi/2, 0, 0)
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("overhead face-on projection = %g, want 1", got)
	}
}

func TestScore_ZeroDistanceScoresZero(t *testing.T) {
	s := NewInspiralScorer()
	batch := map[string][]float64{
		"mass_1":                          {30},
		"mass_2":                          {30},
		"effective_luminosity_distance_1": {0},
	}
	scores, err := s.Score(batch, "effective_luminosity_distance_1")
	if err != nil {
		t.Fatal(err)
	}
	if scores[0] != 0 {
		t.Errorf("score at zero distance = %g, want 0", scores[0])
	}
}

func TestScore_MissingFieldErrors(t *testing.T) {
	s := NewInspiralScorer()
	if _, err := s.Score(map[string][]float64{"mass_1": {30}}, "luminosity_distance"); err == nil {
		t.Fatal("expected an error for the missing fields")
	}
}

func TestPdet_ThresholdBehavior(t *testing.T) {
	if p := Pdet(8, 8); math.Abs(p-0.5) > 1e-12 {
		t.Errorf("Pdet at threshold = %g, want 0.5", p)
	}
	if p := Pdet(18, 8); p < 0.999999 {
		t.Errorf("Pdet far above threshold = %g, want ≈ 1", p)
	}
	if p := Pdet(0, 8); p > 1e-9 {
		t.Errorf("Pdet far below threshold = %g, want ≈ 0", p)
	}
	if Pdet(9, 8) <= Pdet(7, 8) {
		t.Error("Pdet should increase with SNR")
	}
}
