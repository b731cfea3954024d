package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"go.uber.org/zap"

	"github.com/tournevent/freight/internal/telemetry"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/resilience"
)

// ServiceHealth is implemented by the guarded provider clients.
type ServiceHealth interface {
	Health() resilience.HealthStatus
}

// CacheProbe reports whether the cache is reachable.
type CacheProbe interface {
	IsAvailable(ctx context.Context) bool
}

// Resolver is the root resolver for the GraphQL schema.
// It holds dependencies needed by all resolvers.
type Resolver struct {
	Quoter    *freight.Quoter
	Distances freight.DistanceResolver
	Services  []ServiceHealth
	Cache     CacheProbe
	Logger    *otelzap.Logger
	Metrics   *telemetry.Metrics
}

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(quoter *freight.Quoter, distances freight.DistanceResolver, services []ServiceHealth, cache CacheProbe, logger *otelzap.Logger, metrics *telemetry.Metrics) *Resolver {
	if quoter == nil {
		quoter = freight.NewQuoter(nil, distances, logger, nil)
	}
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Resolver{
		Quoter:    quoter,
		Distances: distances,
		Services:  services,
		Cache:     cache,
		Logger:    logger,
		Metrics:   metrics,
	}
}

// Request is a GraphQL request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Execute runs a query document. Field errors are reported alongside the
// fields that did resolve; document errors leave data null.
func (r *Resolver) Execute(ctx context.Context, req Request) *gql.Response {
	resp := &gql.Response{
		Extensions: map[string]any{"requestId": uuid.New().String()},
	}

	doc, parseErr := parser.ParseQuery(&ast.Source{Input: req.Query})
	if parseErr != nil {
		resp.Errors = gqlerror.List{toGQLError(parseErr, nil)}
		return resp
	}

	op, err := selectOperation(doc, req.OperationName)
	if err != nil {
		resp.Errors = gqlerror.List{toGQLError(err, nil)}
		return resp
	}

	vars := make(map[string]any, len(req.Variables))
	for k, v := range req.Variables {
		vars[k] = v
	}
	for _, def := range op.VariableDefinitions {
		if _, ok := vars[def.Variable]; ok || def.DefaultValue == nil {
			continue
		}
		if v, err := def.DefaultValue.Value(nil); err == nil {
			vars[def.Variable] = v
		}
	}

	data := orderedObject{}
	err = eachField(doc, op.SelectionSet, func(f *ast.Field) error {
		key := responseKey(f)
		value, err := r.resolveField(ctx, f, vars)
		if err == nil {
			value, err = project(doc, f.SelectionSet, value)
		}
		if err != nil {
			resp.Errors = append(resp.Errors, toGQLError(err, ast.Path{ast.PathName(key)}))
			value = nil
		}
		data = append(data, entry{key, value})
		return nil
	})
	if err != nil {
		resp.Errors = append(resp.Errors, toGQLError(err, nil))
		return resp
	}

	raw, err := json.Marshal(data)
	if err != nil {
		resp.Errors = append(resp.Errors, toGQLError(err, nil))
		return resp
	}
	resp.Data = raw
	return resp
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if len(doc.Operations) == 0 {
		return nil, gqlerror.Errorf("No operation found in document.")
	}
	var op *ast.OperationDefinition
	if name == "" {
		if len(doc.Operations) > 1 {
			return nil, gqlerror.Errorf("Must provide operation name if query contains multiple operations.")
		}
		op = doc.Operations[0]
	} else {
		op = doc.Operations.ForName(name)
		if op == nil {
			return nil, gqlerror.Errorf("Unknown operation named %q.", name)
		}
	}
	if op.Operation != ast.Query {
		return nil, gqlerror.Errorf("Only query operations are supported.")
	}
	return op, nil
}

func (r *Resolver) resolveField(ctx context.Context, f *ast.Field, vars map[string]any) (any, error) {
	switch f.Name {
	case "__typename":
		return "Query", nil
	case "quote":
		return r.quote(ctx, f, vars)
	case "quotes":
		return r.quotes(ctx, f, vars)
	case "distance":
		return r.distance(ctx, f, vars)
	case "options":
		return r.options(), nil
	case "health":
		return r.healthObject(ctx), nil
	default:
		return nil, gqlerror.Errorf("Cannot query field %q on type \"Query\".", f.Name)
	}
}

func (r *Resolver) quoteRequest(f *ast.Field, vars map[string]any) (freight.QuoteRequest, error) {
	var (
		req freight.QuoteRequest
		err error
	)
	if req.Weight, err = floatArg(f, "weight", vars); err != nil {
		return req, err
	}
	if req.Distance, err = floatArg(f, "distance", vars); err != nil {
		return req, err
	}
	if req.OriginCEP, err = stringArg(f, "originCep", vars); err != nil {
		return req, err
	}
	if req.DestinationCEP, err = stringArg(f, "destinationCep", vars); err != nil {
		return req, err
	}
	if f.Name == "quote" {
		if req.Option, err = optionArg(f, vars); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (r *Resolver) quote(ctx context.Context, f *ast.Field, vars map[string]any) (any, error) {
	start := time.Now()
	req, err := r.quoteRequest(f, vars)
	if err != nil {
		r.record(ctx, "quote", "", start, err)
		return nil, err
	}

	q, err := r.Quoter.Quote(ctx, req)
	r.record(ctx, "quote", req.Option.String(), start, err)
	if err != nil {
		return nil, err
	}
	return quoteToObject(q), nil
}

func (r *Resolver) quotes(ctx context.Context, f *ast.Field, vars map[string]any) (any, error) {
	start := time.Now()
	req, err := r.quoteRequest(f, vars)
	if err != nil {
		r.record(ctx, "quotes", "all", start, err)
		return nil, err
	}

	all, err := r.Quoter.QuoteAll(ctx, req)
	r.record(ctx, "quotes", "all", start, err)
	if err != nil {
		return nil, err
	}
	result := make([]*object, 0, len(all))
	for _, fr := range all {
		result = append(result, freightToObject(fr))
	}
	return result, nil
}

func (r *Resolver) distance(ctx context.Context, f *ast.Field, vars map[string]any) (any, error) {
	start := time.Now()
	if r.Distances == nil {
		err := freight.InvalidInput("Distance lookup by CEP is not configured.")
		r.record(ctx, "distance", "", start, err)
		return nil, err
	}

	origin, err := stringArg(f, "originCep", vars)
	if err != nil {
		return nil, err
	}
	destination, err := stringArg(f, "destinationCep", vars)
	if err != nil {
		return nil, err
	}

	km, err := r.Distances.Distance(ctx, origin, destination)
	r.record(ctx, "distance", "", start, err)
	if err != nil {
		return nil, err
	}
	return &object{
		typeName: "Distance",
		fields: map[string]any{
			"originCep":      freight.NormalizeCEP(origin),
			"destinationCep": freight.NormalizeCEP(destination),
			"kilometers":     km,
		},
	}, nil
}

func (r *Resolver) options() []*object {
	all := r.Quoter.Pricing().All()
	result := make([]*object, 0, len(all))
	for _, s := range all {
		o := s.Option()
		result = append(result, &object{
			typeName: "FreightOption",
			fields: map[string]any{
				"id":   int(o),
				"name": o.String(),
				"enum": optionEnum(o),
			},
		})
	}
	return result
}

// HealthReport summarises dependency health.
type HealthReport struct {
	// Status is "ok", or "degraded" while any breaker is open.
	Status         string                    `json:"status"`
	CacheAvailable bool                      `json:"cache_available"`
	Services       []resilience.HealthStatus `json:"services"`
}

// Healthy reports whether every breaker admits calls.
func (h HealthReport) Healthy() bool {
	return h.Status == "ok"
}

// Health collects breaker state for every provider and probes the cache.
// The cache is optional, so an unreachable cache does not degrade status.
func (r *Resolver) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:   "ok",
		Services: make([]resilience.HealthStatus, 0, len(r.Services)),
	}
	for _, s := range r.Services {
		h := s.Health()
		if !h.Healthy {
			report.Status = "degraded"
		}
		report.Services = append(report.Services, h)
	}
	if r.Cache != nil {
		report.CacheAvailable = r.Cache.IsAvailable(ctx)
	}
	return report
}

func (r *Resolver) healthObject(ctx context.Context) *object {
	report := r.Health(ctx)
	services := make([]*object, 0, len(report.Services))
	for _, h := range report.Services {
		services = append(services, serviceHealthToObject(h))
	}
	return &object{
		typeName: "Health",
		fields: map[string]any{
			"status":         report.Status,
			"healthy":        report.Healthy(),
			"cacheAvailable": report.CacheAvailable,
			"services":       services,
		},
	}
}

func (r *Resolver) record(ctx context.Context, operation, option string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		r.Metrics.RecordError(err)

		logger := r.Logger.Ctx(ctx)
		if errors.Is(err, freight.ErrExternalService) {
			logger.Warn("Request failed", zap.String("operation", operation), zap.Error(err))
		} else {
			logger.Debug("Request rejected", zap.String("operation", operation), zap.Error(err))
		}
	}
	r.Metrics.RecordRequest(operation, option, status, time.Since(start).Seconds())
}
