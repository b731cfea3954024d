package graphql

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/resilience"
)

// object is a resolved GraphQL object before projection.
type object struct {
	typeName string
	fields   map[string]any
}

// orderedObject keeps response keys in selection order.
type orderedObject []entry

type entry struct {
	key   string
	value any
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// eachField walks a selection set, expanding inline fragments and fragment
// spreads. Type conditions are not checked since every object has one type.
func eachField(doc *ast.QueryDocument, set ast.SelectionSet, fn func(*ast.Field) error) error {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if err := fn(s); err != nil {
				return err
			}
		case *ast.InlineFragment:
			if err := eachField(doc, s.SelectionSet, fn); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			def := s.Definition
			if def == nil {
				def = doc.Fragments.ForName(s.Name)
			}
			if def == nil {
				return gqlerror.Errorf("Unknown fragment %q.", s.Name)
			}
			if err := eachField(doc, def.SelectionSet, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// project applies a selection set to a resolved value.
func project(doc *ast.QueryDocument, set ast.SelectionSet, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *object:
		if len(set) == 0 {
			return nil, gqlerror.Errorf("Field of type %q must have a selection of subfields.", v.typeName)
		}
		out := orderedObject{}
		err := eachField(doc, set, func(f *ast.Field) error {
			key := responseKey(f)
			if f.Name == "__typename" {
				out = append(out, entry{key, v.typeName})
				return nil
			}
			fv, ok := v.fields[f.Name]
			if !ok {
				return gqlerror.Errorf("Cannot query field %q on type %q.", f.Name, v.typeName)
			}
			projected, err := project(doc, f.SelectionSet, fv)
			if err != nil {
				return err
			}
			out = append(out, entry{key, projected})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	case []*object:
		list := make([]any, 0, len(v))
		for _, item := range v {
			projected, err := project(doc, set, item)
			if err != nil {
				return nil, err
			}
			list = append(list, projected)
		}
		return list, nil
	default:
		if len(set) > 0 {
			return nil, gqlerror.Errorf("Selection set is not allowed on a scalar field.")
		}
		return v, nil
	}
}

func argument(f *ast.Field, name string, vars map[string]any) (any, error) {
	arg := f.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return nil, nil
	}
	return arg.Value.Value(vars)
}

func floatArg(f *ast.Field, name string, vars map[string]any) (float64, error) {
	raw, err := argument(f, name, vars)
	if err != nil {
		return 0, err
	}
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, freight.InvalidInput("Argument %s must be a number.", name)
		}
		return n, nil
	default:
		return 0, freight.InvalidInput("Argument %s must be a number.", name)
	}
}

func stringArg(f *ast.Field, name string, vars map[string]any) (string, error) {
	raw, err := argument(f, name, vars)
	if err != nil {
		return "", err
	}
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", freight.InvalidInput("Argument %s must be a string.", name)
	}
}

// optionArg accepts the enum name (SEDEX_10), the tier name or its number.
// A missing option defaults to Normal.
func optionArg(f *ast.Field, vars map[string]any) (freight.Option, error) {
	raw, err := argument(f, "option", vars)
	if err != nil {
		return 0, err
	}
	switch v := raw.(type) {
	case nil:
		return freight.OptionNormal, nil
	case string:
		return freight.ParseOption(v)
	case int64:
		return freight.ParseOption(strconv.FormatInt(v, 10))
	case float64:
		return freight.ParseOption(strconv.FormatFloat(v, 'f', -1, 64))
	case json.Number:
		return freight.ParseOption(v.String())
	default:
		return 0, freight.InvalidInput("Invalid freight option.")
	}
}

// optionEnum renders an option as a GraphQL enum value.
func optionEnum(o freight.Option) string {
	switch o {
	case freight.OptionSedex10:
		return "SEDEX_10"
	default:
		return strings.ToUpper(o.String())
	}
}

func freightToObject(f *freight.Freight) *object {
	return &object{
		typeName: "Freight",
		fields: map[string]any{
			"option":   optionEnum(f.Option()),
			"price":    f.Price(),
			"value":    f.Value(),
			"distance": f.Distance(),
			"weight":   f.Weight(),
		},
	}
}

func quoteToObject(q *freight.Quote) *object {
	obj := freightToObject(q.Freight)
	obj.typeName = "Quote"
	obj.fields["id"] = q.ID
	obj.fields["message"] = q.Message()
	obj.fields["createdAt"] = q.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	return obj
}

func serviceHealthToObject(h resilience.HealthStatus) *object {
	return &object{
		typeName: "ServiceHealth",
		fields: map[string]any{
			"name":                h.Name,
			"healthy":             h.Healthy,
			"state":               h.State,
			"requests":            h.Requests,
			"totalFailures":       h.TotalFailures,
			"consecutiveFailures": h.ConsecutiveFailures,
		},
	}
}

// toGQLError converts a resolver error into a GraphQL error. Only the
// user-facing message is exposed; the kind and code travel as extensions.
func toGQLError(err error, path ast.Path) *gqlerror.Error {
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		if gerr.Path == nil {
			gerr.Path = path
		}
		return gerr
	}

	extensions := map[string]any{"code": "INTERNAL"}
	var fe *freight.Error
	if errors.As(err, &fe) {
		extensions["code"] = string(fe.Kind)
		if fe.Code != "" {
			extensions["reason"] = fe.Code
		}
		if fe.Service != "" {
			extensions["service"] = fe.Service
		}
	}

	return &gqlerror.Error{
		Err:        err,
		Message:    freight.UserMessage(err),
		Path:       path,
		Extensions: extensions,
	}
}
