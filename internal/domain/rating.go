package domain

import "time"

// Rating represents a single user's rating for a movie.
type Rating struct {
	ID        string
	MovieID   string
	RaterID   string
	Value     float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingAggregate provides the mean and count of an item's positive ratings.
type RatingAggregate struct {
	Mean  float64
	Count int64
}

// ItemStats summarises every rated item: the average ratings count and the
// average mean rating across items with at least one rating.
type ItemStats struct {
	AvgCount float64
	AvgMean  float64
}

// GlobalConstants is the cached prior for the Bayesian average.
type GlobalConstants struct {
	C          float64   `json:"C"`
	M          float64   `json:"m"`
	ComputedAt time.Time `json:"time"`
}
