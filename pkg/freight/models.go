package freight

import (
	"fmt"
	"time"
)

// GeoCoordinate is a resolved latitude/longitude pair.
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the pair lies within the geographic bounds.
func (g GeoCoordinate) Valid() bool {
	return g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Longitude >= -180 && g.Longitude <= 180
}

// String renders the pair as "lat,lon".
func (g GeoCoordinate) String() string {
	return fmt.Sprintf("%g,%g", g.Latitude, g.Longitude)
}

// Freight is a priced shipment. It is immutable once constructed.
type Freight struct {
	distance float64
	weight   float64
	option   Option
	value    float64
}

// NewFreight prices a shipment with the given strategy.
// Distance and weight must both be positive.
func NewFreight(distance, weight float64, strategy Strategy) (*Freight, error) {
	if !(distance > 0) || !(weight > 0) {
		return nil, InvalidInput("Distance and weight must be positive values.")
	}
	if strategy == nil {
		return nil, InvalidInput("Invalid freight option.")
	}
	return &Freight{
		distance: distance,
		weight:   weight,
		option:   strategy.Option(),
		value:    strategy.Calculate(distance, weight),
	}, nil
}

// Distance returns the travelled distance in kilometres.
func (f *Freight) Distance() float64 { return f.distance }

// Weight returns the package weight.
func (f *Freight) Weight() float64 { return f.weight }

// Option returns the pricing tier applied.
func (f *Freight) Option() Option { return f.option }

// Value returns the unrounded price.
func (f *Freight) Value() float64 { return f.value }

// Price returns the value formatted with two decimals.
func (f *Freight) Price() string {
	return fmt.Sprintf("%.2f", f.value)
}

// QuoteRequest asks for a price. Distance is used when positive; otherwise
// both CEPs are resolved to a road distance.
type QuoteRequest struct {
	Weight         float64
	Distance       float64
	OriginCEP      string
	DestinationCEP string
	Option         Option
}

// Quote is the result of a successful pricing request.
type Quote struct {
	ID        string
	Freight   *Freight
	CreatedAt time.Time
}

// Message renders the quote the way the CLI prints it.
func (q *Quote) Message() string {
	return fmt.Sprintf("The freight value is %s", q.Freight.Price())
}
