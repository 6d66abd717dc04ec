package sensor

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func newTestSimulator(seed int64) *Simulator {
	return &Simulator{
		rand: rand.New(rand.NewSource(seed)),
		now:  func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func inBand(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func TestSimulatorValuesStayInBands(t *testing.T) {
	s := newTestSimulator(1)

	for i := 0; i < 1000; i++ {
		r := s.Read()

		tempOK := inBand(r.Temperature, 26, 30) ||
			inBand(r.Temperature, 33.5, 36) ||
			inBand(r.Temperature, 15, 18)
		humOK := inBand(r.Humidity, 55, 68) ||
			inBand(r.Humidity, 82, 90) ||
			inBand(r.Humidity, 20, 28)

		if !tempOK {
			t.Fatalf("Draw %d: temperature %v outside all bands", i, r.Temperature)
		}
		if !humOK {
			t.Fatalf("Draw %d: humidity %v outside all bands", i, r.Humidity)
		}
	}
}

func TestSimulatorMostDrawsNominal(t *testing.T) {
	s := newTestSimulator(42)

	nominal := 0
	const draws = 1000
	for i := 0; i < draws; i++ {
		r := s.Read()
		if inBand(r.Temperature, 26, 30) && inBand(r.Humidity, 55, 68) {
			nominal++
		}
	}

	// Expected nominal rate is 95%; 90% leaves seed headroom.
	if nominal < draws*90/100 {
		t.Errorf("Expected at least 90%% nominal draws, got %d/%d", nominal, draws)
	}
	if nominal == draws {
		t.Error("Expected at least one excursion in 1000 draws")
	}
}

func TestSimulatorExcursionsAreCorrelated(t *testing.T) {
	s := newTestSimulator(7)

	// One roll selects the band for both metrics, so a critical temperature
	// always comes with a critical humidity in the matching direction.
	for i := 0; i < 2000; i++ {
		r := s.Read()
		switch {
		case inBand(r.Temperature, 33.5, 36):
			if !inBand(r.Humidity, 82, 90) {
				t.Fatalf("Draw %d: high temperature %v paired with humidity %v", i, r.Temperature, r.Humidity)
			}
		case inBand(r.Temperature, 15, 18):
			if !inBand(r.Humidity, 20, 28) {
				t.Fatalf("Draw %d: low temperature %v paired with humidity %v", i, r.Temperature, r.Humidity)
			}
		}
	}
}

func TestSimulatorRoundsToTwoDecimals(t *testing.T) {
	s := newTestSimulator(3)

	for i := 0; i < 100; i++ {
		r := s.Read()
		if math.Abs(r.Temperature*100-math.Round(r.Temperature*100)) > 1e-9 {
			t.Errorf("Temperature %v not rounded to 2 decimals", r.Temperature)
		}
		if math.Abs(r.Humidity*100-math.Round(r.Humidity*100)) > 1e-9 {
			t.Errorf("Humidity %v not rounded to 2 decimals", r.Humidity)
		}
	}
}

func TestSimulatorStampsCaptureTime(t *testing.T) {
	s := newTestSimulator(5)

	r := s.Read()
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !r.CapturedAt.Equal(want) {
		t.Errorf("Expected capture time %v, got %v", want, r.CapturedAt)
	}
}
