package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/c360/sembridge/errors"
)

// Reading is one sensor measurement entering the pipeline.
type Reading struct {
	SensorID   string    `json:"sensor_id"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Validate rejects readings that cannot be fuzzified. Inputs call this
// before handing a decoded payload to the coordinator.
func (r Reading) Validate() error {
	switch {
	case r.SensorID == "":
		return invalidReading("sensor id is empty")
	case r.SensorType == "":
		return invalidReading("sensor type is empty")
	case math.IsNaN(r.Value) || math.IsInf(r.Value, 0):
		return invalidReading(fmt.Sprintf("value %v is not a finite number", r.Value))
	}
	return nil
}

func invalidReading(detail string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidData, detail),
		"pipeline.Reading", "Validate", "reading check")
}

// ReadingSource supplies the readings for one timer-driven cycle.
type ReadingSource func(ctx context.Context) ([]Reading, error)
