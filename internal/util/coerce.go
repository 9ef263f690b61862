package util

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// CoerceInput converts a generic argument map into a tool's declared input
// shape. If shape is nil or itself a map type the arguments pass through
// unchanged. Otherwise the map is round-tripped through JSON into a freshly
// allocated value of the shape's type, the same way the registration payload
// arrived in the first place.
//
// The returned value has the same type as shape (a pointer shape yields a
// pointer). Coercion failures are returned as errors so the dispatcher can
// capture them per item without failing the batch.
func CoerceInput(args map[string]any, shape any) (any, error) {
	if shape == nil {
		return args, nil
	}

	t := reflect.TypeOf(shape)
	base := t
	if base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base.Kind() == reflect.Map {
		return args, nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}

	target := reflect.New(base) // *T
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return nil, fmt.Errorf("input does not match declared shape %s: %w", base.String(), err)
	}

	if t.Kind() == reflect.Ptr {
		return target.Interface(), nil
	}
	return target.Elem().Interface(), nil
}
