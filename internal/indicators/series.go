// Package indicators derives technical indicator series from price series.
//
// Every function takes the full input and returns a Series of the same
// length, aligned index for index. Points inside the warm-up window are not
// Ready and encode as JSON null. Inputs are never mutated and recomputing on
// the same input yields identical output.
package indicators

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/jwtly10/tradedesk/internal/types"
)

// Point is one indicator value. Value is meaningless unless Ready.
type Point struct {
	Value float64
	Ready bool
}

func (p Point) MarshalJSON() ([]byte, error) {
	if !p.Ready {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

func (p *Point) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Point{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Point{Value: v, Ready: true}
	return nil
}

type Series []Point

// Last returns the final point, or a not-ready point for an empty series.
func (s Series) Last() Point {
	if len(s) == 0 {
		return Point{}
	}
	return s[len(s)-1]
}

// ReadyCount is the number of defined points.
func (s Series) ReadyCount() int {
	n := 0
	for _, p := range s {
		if p.Ready {
			n++
		}
	}
	return n
}

func validateValues(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value %d is %v: %w", i, v, types.ErrInvalidInputSeries)
		}
	}
	return nil
}

func validatePeriod(name string, period int) error {
	if period < 1 {
		return fmt.Errorf("%s period %d: %w", name, period, types.ErrInvalidPeriod)
	}
	return nil
}
