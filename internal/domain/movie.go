package domain

import "time"

// Movie represents the canonical movie entity in the database/service.
//
// RatingsCount, MeanRating and BayesianRating are derived from the movie's
// ratings by the bayes engine; they are never written from user input.
type Movie struct {
	ID             string
	Title          string
	ReleaseDate    time.Time
	ReleaseYear    int
	Genre          string
	Distributor    *string
	Budget         *int64
	MpaRating      *string
	RatingsCount   int64
	MeanRating     float64
	BayesianRating float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
