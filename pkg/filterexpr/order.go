package filterexpr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

type orderParams struct {
	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

func parseOrderBy(raw string, schema OrderSchema) (orderParams, error) {
	if schema.DefaultPrimary == "" || schema.FallbackKey == "" {
		return orderParams{}, errors.New("order schema requires default primary and fallback keys")
	}
	for _, key := range []string{schema.DefaultPrimary, schema.FallbackKey} {
		if _, ok := schema.Fields[key]; !ok {
			return orderParams{}, fmt.Errorf("order key %q missing from schema fields", key)
		}
	}

	ord := orderParams{
		PrimaryKey:    schema.DefaultPrimary,
		PrimaryDesc:   schema.DefaultPrimaryDesc,
		SecondaryKey:  schema.FallbackKey,
		SecondaryDesc: schema.FallbackDesc,
	}

	var terms []string
	for _, seg := range strings.Split(raw, ",") {
		if seg = strings.TrimSpace(seg); seg != "" {
			terms = append(terms, seg)
		}
	}
	if len(terms) > 2 {
		return orderParams{}, errors.New("order_by supports at most two keys")
	}

	for i, term := range terms {
		parts := strings.Fields(term)
		key := parts[0]
		if _, ok := schema.Fields[key]; !ok {
			return orderParams{}, fmt.Errorf("field %q cannot be used for ordering", key)
		}
		desc := false
		switch {
		case len(parts) == 1:
		case len(parts) == 2 && strings.EqualFold(parts[1], "asc"):
		case len(parts) == 2 && strings.EqualFold(parts[1], "desc"):
			desc = true
		default:
			return orderParams{}, fmt.Errorf("invalid order segment %q", term)
		}
		if i == 0 {
			ord.PrimaryKey, ord.PrimaryDesc = key, desc
			continue
		}
		if key == ord.PrimaryKey {
			return orderParams{}, fmt.Errorf("duplicate order key %q", key)
		}
		ord.SecondaryKey, ord.SecondaryDesc = key, desc
	}

	if ord.SecondaryKey == ord.PrimaryKey {
		ord.SecondaryKey, ord.SecondaryDesc = "", false
	}
	return ord, nil
}

// OrderExpr returns the column expression registered for key.
func (s OrderSchema) OrderExpr(key string) (string, bool) {
	f, ok := s.Fields[key]
	if !ok || f.Expr == "" {
		return "", false
	}
	return f.Expr, true
}

func setOrderParams(dest reflect.Value, ord orderParams) error {
	values := map[string]any{
		"PrimaryKey":    ord.PrimaryKey,
		"PrimaryDesc":   ord.PrimaryDesc,
		"SecondaryKey":  ord.SecondaryKey,
		"SecondaryDesc": ord.SecondaryDesc,
	}
	for name, v := range values {
		field := dest.FieldByName(name)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("params struct %s has no settable field %q", dest.Type(), name)
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("field %q must be %s-compatible, got %s", name, rv.Type(), field.Type())
		}
		field.Set(rv.Convert(field.Type()))
	}
	return nil
}
