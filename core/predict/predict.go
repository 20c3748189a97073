// Package predict flags the topics a student should review.
package predict

import (
	"math"
	"math/rand"

	"github.com/urfu-lab/studyhub/core/features"
)

const (
	passingScore   = 4
	soonEventDays  = 3
	minScore       = 0.3
	maxScore       = 0.9
	clustersNumber = 3
)

type (
	TopicNeed struct {
		NeedReview bool    `json:"need_review"`
		Score      float64 `json:"score"`
		Cluster    int     `json:"cluster"`
	}

	// Rand is the source of the score and cluster values.
	Rand interface {
		Float64() float64
		Intn(n int) int
	}
)

// globalRand uses the package level source of math/rand, which is safe for concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) Intn(n int) int   { return rand.Intn(n) }

func NewRand() Rand {
	return globalRand{}
}

// PredictTopicNeeds marks a topic for review when its average is below passing, it has a failing grade,
// or its event is at most three days away. Score and cluster are placeholders drawn from rnd.
func PredictTopicNeeds(f features.Features, rnd Rand) map[string]TopicNeed {
	result := make(map[string]TopicNeed, len(f))
	for topic, data := range f {
		need := false
		if data.AvgScore != nil && *data.AvgScore < passingScore {
			need = true
		}
		if data.Fails != nil && *data.Fails >= 1 {
			need = true
		}
		if data.DaysUntilEvent != nil && *data.DaysUntilEvent <= soonEventDays {
			need = true
		}

		score := minScore + rnd.Float64()*(maxScore-minScore)
		result[topic] = TopicNeed{
			NeedReview: need,
			Score:      math.Round(score*100) / 100,
			Cluster:    rnd.Intn(clustersNumber),
		}
	}
	return result
}
