package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Excursion probabilities: a single roll puts both metrics in the same band,
// so high/low excursions are correlated across temperature and humidity.
const (
	highExcursionP = 0.025
	lowExcursionP  = 0.05
)

// Simulator produces plausible readings without hardware: ~95% nominal,
// ~2.5% high-critical, ~2.5% low-critical. It backs development mode and
// acquisition fallback, and exists to exercise alerting realistically, not
// to model physics.
type Simulator struct {
	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

// NewSimulator creates a simulator seeded from the current time.
func NewSimulator() *Simulator {
	return &Simulator{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:  time.Now,
	}
}

// Read draws one simulated reading. It never fails.
func (s *Simulator) Read() SensorData {
	s.mu.Lock()
	defer s.mu.Unlock()

	roll := s.rand.Float64()

	var humidity, temperature float64
	switch {
	case roll < highExcursionP:
		humidity = 82 + s.rand.Float64()*8        // 82-90%
		temperature = 33.5 + s.rand.Float64()*2.5 // 33.5-36°C
	case roll < lowExcursionP:
		humidity = 20 + s.rand.Float64()*8    // 20-28%
		temperature = 15 + s.rand.Float64()*3 // 15-18°C
	default:
		humidity = 55 + s.rand.Float64()*13   // 55-68%
		temperature = 26 + s.rand.Float64()*4 // 26-30°C
	}

	return SensorData{
		Temperature: round2(temperature),
		Humidity:    round2(humidity),
		CapturedAt:  s.now(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
