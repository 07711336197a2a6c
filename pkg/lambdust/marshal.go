package lambdust

import (
	"fmt"
	"reflect"

	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// ToValue converts a Go value to a Scheme Value, following §6's
// conversion rules (integer<->i64, string<->utf-8, list<->sequence,
// record<->host-opaque), grounded on the teacher's
// Marshaller.ToValue reflect-based dispatch.
func ToValue(v any) (value.Value, error) {
	if v == nil {
		return value.Nil, nil
	}
	if sv, ok := v.(value.Value); ok {
		return sv, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Fixnum(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return value.Fixnum(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return value.Real(rv.Float()), nil
	case reflect.Bool:
		return value.Bool(rv.Bool()), nil
	case reflect.String:
		return value.NewString(rv.String()), nil
	case reflect.Slice, reflect.Array:
		elems := make([]value.Value, rv.Len())
		for i := range elems {
			ev, err := ToValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elems[i] = ev
		}
		return value.List(elems...), nil
	default:
		return &value.ForeignRef{Native: v}, nil
	}
}

// FromValue converts a Scheme Value back to a Go value. targetType is
// optional; the only conversion it drives is a Fixnum returned as
// float64 when targetType's kind is Float64 (spec §6: "integer<->i64
// with overflow check").
func FromValue(v value.Value, targetType reflect.Type) (any, error) {
	switch t := v.(type) {
	case value.Fixnum:
		if targetType != nil && targetType.Kind() == reflect.Float64 {
			return float64(t), nil
		}
		return int64(t), nil
	case *value.Bignum:
		if !t.V.IsInt64() {
			return nil, fmt.Errorf("bignum %s overflows int64", t.V.String())
		}
		return t.V.Int64(), nil
	case value.Real:
		return float64(t), nil
	case value.Boolean:
		return bool(t), nil
	case *value.String:
		return t.Go(), nil
	case value.NilValue:
		return nil, nil
	case value.UnspecifiedValue:
		return nil, nil
	case *value.ForeignRef:
		return t.Native, nil
	case *value.Pair:
		slice, err := value.ToSlice(v)
		if err != nil {
			return nil, fmt.Errorf("improper list has no Go representation: %w", err)
		}
		out := make([]any, len(slice))
		for i, e := range slice {
			gv, err := FromValue(e, nil)
			if err != nil {
				return nil, err
			}
			out[i] = gv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("no Go representation for %s", v.Write())
	}
}

