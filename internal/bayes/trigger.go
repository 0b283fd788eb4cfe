package bayes

import (
	"context"
	"fmt"
)

// RatingWrite describes a successful write to the rating table.
type RatingWrite struct {
	RatingID string
	// ItemID is empty when the write did not carry the foreign key.
	ItemID string
	// Rating is nil when the write did not touch the rating value.
	Rating *float64
}

// AfterSave recounts the item of a rating write. Writes without a rating
// value are ignored.
func (e *Engine) AfterSave(ctx context.Context, w RatingWrite) error {
	if w.Rating == nil {
		return nil
	}

	itemID := w.ItemID
	if itemID == "" {
		if e.lookup == nil {
			return fmt.Errorf("%w: write of rating %s has no item id and no rating lookup is configured", ErrConfiguration, w.RatingID)
		}
		id, err := e.lookup.ItemIDForRating(ctx, e.ratingSource(), w.RatingID)
		if err != nil {
			return fmt.Errorf("lookup item of rating %s: %w", w.RatingID, err)
		}
		itemID = id
	}

	return e.Recount(ctx, itemID)
}
