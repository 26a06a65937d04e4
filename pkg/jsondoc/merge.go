package jsondoc

import (
	"encoding/json"
	"strconv"
)

// Merge deep-merges src into dst in place. When both sides hold an object
// under the same key the merge recurses, otherwise the src value replaces
// the dst value. Arrays are replaced, never concatenated. New keys are
// appended after the existing ones.
func Merge(dst, src *Object) {
	src.Range(func(key string, value any) bool {
		if incoming, ok := value.(*Object); ok {
			if existing, ok := dst.GetObject(key); ok {
				Merge(existing, incoming)
				return true
			}
		}
		dst.Set(key, DeepCopy(value))
		return true
	})
}

// MergeValue merges src into dst and returns the result. Two objects are
// merged in place into dst; any other combination yields a copy of src.
func MergeValue(dst, src any) any {
	d, dok := dst.(*Object)
	s, sok := src.(*Object)
	if dok && sok && d != nil {
		Merge(d, s)
		return d
	}
	return DeepCopy(src)
}

// Equal reports whether a and b hold the same JSON value. Object key order
// is ignored and numbers compare by value.
func Equal(a, b any) bool {
	return equal(a, b, false)
}

// EqualOrdered is like Equal but also requires object keys in the same order.
func EqualOrdered(a, b any) bool {
	return equal(a, b, true)
}

func equal(a, b any, ordered bool) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *Object:
		y, ok := b.(*Object)
		if !ok || x.Len() != y.Len() {
			return false
		}
		if ordered {
			xk, yk := x.Keys(), y.Keys()
			for i := range xk {
				if xk[i] != yk[i] {
					return false
				}
			}
		}
		same := true
		x.Range(func(key string, xv any) bool {
			yv, ok := y.Get(key)
			same = ok && equal(xv, yv, ordered)
			return same
		})
		return same
	case []any:
		y, ok := toSlice(b)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i], ordered) {
				return false
			}
		}
		return true
	case []string:
		xs, _ := toSlice(x)
		return equal(xs, b, ordered)
	default:
		return false
	}
}

func toSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
