package executor

import (
	"math/rand"
	"sync"
)

// EpochMetrics is one epoch's synthesized training signal
type EpochMetrics struct {
	Accuracy    float64
	Loss        float64
	ValAccuracy float64
	ValLoss     float64
}

// Map renders the metrics under their canonical keys
func (m EpochMetrics) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":     m.Accuracy,
		"loss":         m.Loss,
		"val_accuracy": m.ValAccuracy,
		"val_loss":     m.ValLoss,
	}
}

// MetricsGenerator produces the per-epoch training signal. The epoch
// argument is zero-based. Implementations own all randomness, which
// keeps the training loop itself deterministic under test.
type MetricsGenerator interface {
	Epoch(epoch, totalEpochs int) EpochMetrics
}

// DefaultMetricsGenerator synthesizes a mock learning curve: accuracy
// climbs from ~0.5 toward ~0.9 while loss falls from ~2.0 toward ~0.5,
// validation trailing training. Safe for concurrent jobs.
type DefaultMetricsGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMetricsGenerator creates a generator seeded with the given value
func NewMetricsGenerator(seed int64) *DefaultMetricsGenerator {
	return &DefaultMetricsGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Epoch synthesizes metrics for one epoch of a totalEpochs-long run
func (g *DefaultMetricsGenerator) Epoch(epoch, totalEpochs int) EpochMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	frac := float64(epoch) / float64(totalEpochs)
	acc := 0.5 + frac*0.4 + g.rng.NormFloat64()*0.02
	loss := 2.0 - frac*1.5 + g.rng.NormFloat64()*0.1
	return EpochMetrics{
		Accuracy:    acc,
		Loss:        loss,
		ValAccuracy: acc - g.rng.Float64()*0.05,
		ValLoss:     loss + g.rng.Float64()*0.1,
	}
}
