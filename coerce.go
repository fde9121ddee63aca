package rowgraph

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

var durationType = reflect.TypeOf(time.Duration(0))

// converterFor selects the converter for values shaped like sample that must
// land in target. One pointer level is unwrapped first: a *T member takes a
// converted T. Text going into a boolean is read as an integer, nonzero being
// true; everything else goes through convertTo.
func converterFor(target reflect.Type, sample any) Converter {
	under := target
	if under.Kind() == reflect.Ptr {
		under = under.Elem()
	}
	if under.Kind() == reflect.Bool && isText(sample) {
		return func(v any) (any, error) {
			b, err := textToBool(v)
			if err != nil {
				return nil, err
			}
			return reflect.ValueOf(b).Convert(under).Interface(), nil
		}
	}
	return func(v any) (any, error) { return convertTo(v, under) }
}

// needsConversion reports whether a non-nil v cannot be assigned to t as is.
func needsConversion(v any, t reflect.Type) bool {
	if v == nil {
		return false
	}
	_, ok := assignableValue(v, t)
	return !ok
}

func isText(v any) bool {
	switch v.(type) {
	case string, []byte:
		return true
	}
	return false
}

func textToBool(v any) (bool, error) {
	s := v
	if b, ok := v.([]byte); ok {
		s = string(b)
	}
	n, err := cast.ToInt64E(s)
	if err != nil {
		return false, fmt.Errorf("rowgraph: convert %s to bool: %w", formatValue(v), err)
	}
	return n != 0, nil
}

// convertTo converts v to t without regard to locale. Values of the same
// array or struct shape convert directly, driver.Valuer sources are reduced
// to their driver value, sql.Scanner targets receive v through Scan and
// numeric targets are range-checked.
func convertTo(v any, t reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return v, nil
	}
	if k := t.Kind(); (k == reflect.Array || k == reflect.Struct) && rv.Kind() == k && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t).Interface(), nil
	}
	if dv, ok := v.(driver.Valuer); ok {
		u, err := dv.Value()
		if err != nil {
			return nil, fmt.Errorf("rowgraph: value of %T: %w", v, err)
		}
		return convertTo(u, t)
	}
	if implementsScanner(t) {
		p := reflect.New(t)
		if err := p.Interface().(sql.Scanner).Scan(v); err != nil {
			return nil, fmt.Errorf("rowgraph: scan %s into %s: %w", formatValue(v), t, err)
		}
		return p.Elem().Interface(), nil
	}

	src := v
	if b, ok := v.([]byte); ok && !(t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8) {
		src = string(b)
	}

	out, err := castTo(src, t)
	if err != nil {
		return nil, fmt.Errorf("rowgraph: convert %s to %s: %w", formatValue(v), t, err)
	}
	return out, nil
}

func castTo(v any, t reflect.Type) (any, error) {
	switch t {
	case timeType:
		return cast.ToTimeE(v)
	case durationType:
		return cast.ToDurationE(v)
	}

	var out reflect.Value
	switch t.Kind() {
	case reflect.Bool:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, err
		}
		out = reflect.ValueOf(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, err
		}
		if reflect.Zero(t).OverflowInt(n) {
			return nil, fmt.Errorf("%d overflows %s", n, t)
		}
		out = reflect.ValueOf(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(v)
		if err != nil {
			return nil, err
		}
		if reflect.Zero(t).OverflowUint(n) {
			return nil, fmt.Errorf("%d overflows %s", n, t)
		}
		out = reflect.ValueOf(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, err
		}
		out = reflect.ValueOf(f)
	case reflect.String:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		out = reflect.ValueOf(s)
	case reflect.Slice:
		if s, ok := v.(string); ok && t.Elem().Kind() == reflect.Uint8 {
			out = reflect.ValueOf([]byte(s))
			break
		}
		fallthrough
	default:
		rv := reflect.ValueOf(v)
		if !rv.Type().ConvertibleTo(t) {
			return nil, fmt.Errorf("no conversion from %T", v)
		}
		out = rv
	}
	return out.Convert(t).Interface(), nil
}
