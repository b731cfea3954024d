package freight

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Quoter is the top-level pricing entry point.
type Quoter struct {
	pricing   *Registry
	distances DistanceResolver
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// NewQuoter creates a Quoter. distances may be nil when only direct
// distances are quoted.
func NewQuoter(pricing *Registry, distances DistanceResolver, logger *otelzap.Logger, tracer trace.Tracer) *Quoter {
	if pricing == nil {
		pricing = DefaultRegistry()
	}
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/freight/pkg/freight")
	}
	return &Quoter{
		pricing:   pricing,
		distances: distances,
		logger:    logger,
		tracer:    tracer,
	}
}

// Pricing returns the strategy registry.
func (q *Quoter) Pricing() *Registry {
	return q.pricing
}

// Quote prices a shipment. Weight and option are checked before any
// distance lookup is made.
func (q *Quoter) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := q.tracer.Start(ctx, "freight.Quote",
		trace.WithAttributes(
			attribute.Float64("freight.weight", req.Weight),
			attribute.String("freight.option", req.Option.String()),
		))
	defer span.End()

	if !(req.Weight > 0) {
		return nil, InvalidInput("Distance and weight must be positive values.")
	}
	strategy, err := q.pricing.Get(req.Option)
	if err != nil {
		return nil, err
	}

	distance, err := q.resolveDistance(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	f, err := NewFreight(distance, req.Weight, strategy)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		ID:        uuid.New().String(),
		Freight:   f,
		CreatedAt: time.Now(),
	}

	q.logger.Ctx(ctx).Info("Freight quoted",
		zap.String("quote_id", quote.ID),
		zap.String("option", f.Option().String()),
		zap.Float64("distance_km", f.Distance()),
		zap.Float64("weight", f.Weight()),
		zap.String("price", f.Price()),
	)
	return quote, nil
}

// QuoteAll prices a shipment with every registered tier.
func (q *Quoter) QuoteAll(ctx context.Context, req QuoteRequest) ([]*Freight, error) {
	ctx, span := q.tracer.Start(ctx, "freight.QuoteAll")
	defer span.End()

	if !(req.Weight > 0) {
		return nil, InvalidInput("Distance and weight must be positive values.")
	}
	distance, err := q.resolveDistance(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return q.pricing.PriceAll(distance, req.Weight)
}

// GenerateFreight prices a direct-distance shipment and renders the result.
func (q *Quoter) GenerateFreight(ctx context.Context, weight, distance float64, option Option) (string, error) {
	quote, err := q.Quote(ctx, QuoteRequest{
		Weight:   weight,
		Distance: distance,
		Option:   option,
	})
	if err != nil {
		return "", err
	}
	return quote.Message(), nil
}

// resolveDistance uses a positive Distance as given and looks one up from the
// CEPs only when Distance is zero.
func (q *Quoter) resolveDistance(ctx context.Context, req QuoteRequest) (float64, error) {
	if !(req.Distance >= 0) {
		return 0, InvalidInput("Distance and weight must be positive values.")
	}
	hasCEPs := strings.TrimSpace(req.OriginCEP) != "" || strings.TrimSpace(req.DestinationCEP) != ""
	if req.Distance > 0 || !hasCEPs {
		return req.Distance, nil
	}
	if q.distances == nil {
		return 0, InvalidInput("Distance lookup by CEP is not configured.")
	}
	return q.distances.Distance(ctx, req.OriginCEP, req.DestinationCEP)
}
