package bayes

import (
	"math"

	"github.com/Clark-Hu/bayesrank/internal/domain"
)

// minPriorCount is the largest C for which the prior carries no weight.
const minPriorCount = 2

// Scope selects the items whose Bayesian rating is recomputed.
type Scope struct {
	itemID string
	all    bool
}

// AllItems selects every item with at least one rating.
func AllItems() Scope { return Scope{all: true} }

// SingleItem selects one item.
func SingleItem(itemID string) Scope { return Scope{itemID: itemID} }

// All reports whether the scope covers every item.
func (s Scope) All() bool { return s.all }

// ItemID returns the selected item, empty for AllItems.
func (s Scope) ItemID() string { return s.itemID }

func (s Scope) String() string {
	if s.all {
		return "all"
	}
	return "single"
}

// Formula is the Bayesian average for a fixed prior.
type Formula struct {
	C float64
	M float64
}

// Adjusted reports whether the prior is applied. With C <= 2 the score is the
// plain mean.
func (f Formula) Adjusted() bool {
	return f.C > minPriorCount
}

// Score returns the Bayesian rating of an item with n ratings averaging mean.
func (f Formula) Score(n int64, mean float64) float64 {
	if !f.Adjusted() {
		return mean
	}
	count := float64(n)
	return (count/(count+f.C))*mean + (f.C/(count+f.C))*f.M
}

// Decision is the outcome of comparing cached constants with fresh ones.
type Decision struct {
	C        float64
	M        float64
	CDrifted bool
	MDrifted bool
}

// Drifted reports whether either constant was replaced.
func (d Decision) Drifted() bool {
	return d.CDrifted || d.MDrifted
}

// DecideConstants keeps each cached constant unless it is missing or the
// fresh value moved by more than tolerance relative to it.
func DecideConstants(cached *domain.GlobalConstants, fresh domain.ItemStats, tolerance float64) Decision {
	var d Decision
	if cached == nil {
		return Decision{C: fresh.AvgCount, M: fresh.AvgMean, CDrifted: true, MDrifted: true}
	}
	d.C, d.CDrifted = decideConstant(cached.C, fresh.AvgCount, tolerance)
	d.M, d.MDrifted = decideConstant(cached.M, fresh.AvgMean, tolerance)
	return d
}

func decideConstant(cached, fresh, tolerance float64) (float64, bool) {
	if math.Abs(fresh-cached) > cached*tolerance {
		return fresh, true
	}
	return cached, false
}
