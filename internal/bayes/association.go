package bayes

// Association is a belongs-to relation declared by a rating model.
type Association struct {
	Name       string
	ForeignKey string
	Table      string
	PrimaryKey string
}

// RatingModel describes the rating table and what it belongs to.
type RatingModel struct {
	Name       string
	Table      string
	PrimaryKey string
	BelongsTo  []Association
}

// ResolveItemAssociation returns the first association whose foreign key is
// the given column.
func ResolveItemAssociation(belongsTo []Association, foreignKey string) (Association, bool) {
	for _, assoc := range belongsTo {
		if assoc.ForeignKey == foreignKey {
			return assoc, true
		}
	}
	return Association{}, false
}

func associationByName(belongsTo []Association, name string) (Association, bool) {
	for _, assoc := range belongsTo {
		if assoc.Name == name {
			return assoc, true
		}
	}
	return Association{}, false
}

// RatingSource names the columns read from the rating table.
type RatingSource struct {
	Table      string
	PrimaryKey string
	ItemID     string
	Rating     string
}

// ItemTarget names the columns of the item table maintained by the engine.
type ItemTarget struct {
	Table          string
	PrimaryKey     string
	RatingsCount   string
	MeanRating     string
	BayesianRating string
}
