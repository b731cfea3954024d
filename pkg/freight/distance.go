package freight

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DistanceService resolves two CEPs and asks the route provider for the road
// distance between them.
type DistanceService struct {
	coordinates CoordinateResolver
	routes      RouteProvider
	logger      *otelzap.Logger
	tracer      trace.Tracer
}

// NewDistanceService creates a DistanceService. A nil tracer falls back to
// the global provider.
func NewDistanceService(coordinates CoordinateResolver, routes RouteProvider, logger *otelzap.Logger, tracer trace.Tracer) *DistanceService {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/freight/pkg/freight")
	}
	return &DistanceService{
		coordinates: coordinates,
		routes:      routes,
		logger:      logger,
		tracer:      tracer,
	}
}

// Distance returns the road distance in kilometres between two CEPs.
// Both CEPs are resolved concurrently; the first failure cancels the other
// lookup and is returned.
func (s *DistanceService) Distance(ctx context.Context, originCEP, destinationCEP string) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "freight.Distance",
		trace.WithAttributes(
			attribute.String("cep.origin", originCEP),
			attribute.String("cep.destination", destinationCEP),
		))
	defer span.End()

	var origin, destination GeoCoordinate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.coordinates.Coordinates(gctx, originCEP)
		if err != nil {
			return err
		}
		origin = c
		return nil
	})
	g.Go(func() error {
		c, err := s.coordinates.Coordinates(gctx, destinationCEP)
		if err != nil {
			return err
		}
		destination = c
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		s.logger.Ctx(ctx).Warn("CEP resolution failed",
			zap.String("origin_cep", originCEP),
			zap.String("destination_cep", destinationCEP),
			zap.Error(err),
		)
		return 0, err
	}

	km, err := s.routes.Distance(ctx, origin, destination)
	if err != nil {
		span.RecordError(err)
		s.logger.Ctx(ctx).Warn("Route lookup failed", zap.Error(err))
		return 0, err
	}

	span.SetAttributes(attribute.Float64("distance.km", km))
	s.logger.Ctx(ctx).Debug("Resolved distance",
		zap.String("origin_cep", originCEP),
		zap.String("destination_cep", destinationCEP),
		zap.Float64("distance_km", km),
	)
	return km, nil
}

var _ DistanceResolver = (*DistanceService)(nil)
