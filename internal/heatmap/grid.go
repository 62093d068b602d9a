package heatmap

import (
	"errors"
	"fmt"

	"github.com/pauljones0/post-heatmap/internal/models"
)

// ErrUninitialized is returned when an Accumulator is used without NewAccumulator.
var ErrUninitialized = errors.New("heatmap accumulator not initialized")

// Grid is a 7×24 matrix indexed by [dayOfWeek][displayColumn].
type Grid [Days][Hours]int

// Sum adds up every cell.
func (g *Grid) Sum() int {
	total := 0
	for d := range g {
		for c := range g[d] {
			total += g[d][c]
		}
	}
	return total
}

// Result is everything a single accumulation pass produces.
type Result struct {
	Links      Grid
	Engagement Grid
	Totals     models.Totals
	StartHour  int
	Zone       string
}

// Accumulator folds posts into the link and engagement grids. Each run owns
// its accumulator; it is not safe for concurrent use.
type Accumulator struct {
	classifier *Classifier
	result     Result
	ready      bool
}

func NewAccumulator(classifier *Classifier, startHour int) (*Accumulator, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: nil classifier", ErrUninitialized)
	}
	if err := ValidateStartHour(startHour); err != nil {
		return nil, err
	}
	return &Accumulator{
		classifier: classifier,
		result: Result{
			StartHour: startHour,
			Zone:      classifier.Zone(),
		},
		ready: true,
	}, nil
}

// Add classifies the post and bumps the grids. Posts whose timestamp cannot
// be parsed return ErrInvalidTimestamp and leave every total untouched.
func (a *Accumulator) Add(p models.Post) (Slot, error) {
	if a == nil || !a.ready {
		return Slot{}, ErrUninitialized
	}
	slot, err := a.classifier.Classify(p.Timestamp)
	if err != nil {
		return Slot{}, err
	}

	col := ToColumn(slot.Hour, a.result.StartHour)
	eng := p.EngagementScore()

	r := &a.result
	r.Engagement[slot.DayOfWeek][col] += eng
	r.Totals.Posts++
	r.Totals.EngagementSum += eng
	if p.HasLink {
		r.Links[slot.DayOfWeek][col]++
		r.Totals.LinkPosts++
	}
	return slot, nil
}

// Result returns a copy of the grids and totals accumulated so far.
func (a *Accumulator) Result() (Result, error) {
	if a == nil || !a.ready {
		return Result{}, ErrUninitialized
	}
	return a.result, nil
}
