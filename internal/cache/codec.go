package cache

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Clark-Hu/bayesrank/internal/domain"
)

// payload is the stored form of the constants; time is in unix seconds.
type payload struct {
	Time int64   `json:"time"`
	C    float64 `json:"C"`
	M    float64 `json:"m"`
}

func encode(value domain.GlobalConstants) ([]byte, error) {
	return json.Marshal(payload{
		Time: value.ComputedAt.Unix(),
		C:    value.C,
		M:    value.M,
	})
}

func decode(data []byte) (domain.GlobalConstants, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.GlobalConstants{}, fmt.Errorf("decode constants: %w", err)
	}
	return domain.GlobalConstants{
		C:          p.C,
		M:          p.M,
		ComputedAt: time.Unix(p.Time, 0).UTC(),
	}, nil
}
