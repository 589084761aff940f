// Package serialize converts components to and from plain trees of maps, slices
// and scalars, the shape shared by encoding/json and yaml.v3.
package serialize

import (
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/plus3/arkecs/ecs/inspect"
	"github.com/rotisserie/eris"
)

var (
	ErrUnsupported = eris.New("serialize: unsupported value")
	ErrUnknownEnum = eris.New("serialize: unknown enum name")
	ErrMismatch    = eris.New("serialize: tree does not match type")
)

var durationType = reflect.TypeFor[time.Duration]()

var enums = struct {
	sync.RWMutex
	names map[reflect.Type][]string
}{names: make(map[reflect.Type][]string)}

// RegisterEnum makes fields of type T encode as names[value] instead of a number.
func RegisterEnum[T ~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32](names ...string) {
	enums.Lock()
	defer enums.Unlock()
	enums.names[reflect.TypeFor[T]()] = names
}

func enumNames(t reflect.Type) ([]string, bool) {
	enums.RLock()
	defer enums.RUnlock()
	names, ok := enums.names[t]
	return names, ok
}

// EncodeComponent turns a struct (or pointer to one) into a tree keyed by field
// name. A `json` tag renames a field and "-" drops it.
func EncodeComponent(v any) (map[string]any, error) {
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Ptr && !val.IsNil() {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, eris.Wrapf(ErrUnsupported, "component %T is not a struct", v)
	}
	out, err := encodeValue(val)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func encodeValue(val reflect.Value) (any, error) {
	t := val.Type()
	if names, ok := enumNames(t); ok {
		i := enumIndex(val)
		if i >= 0 && i < len(names) {
			return names[i], nil
		}
		return nil, eris.Wrapf(ErrUnsupported, "%s value %d has no name", t, i)
	}
	if t == durationType {
		return time.Duration(val.Int()).Seconds(), nil
	}

	switch val.Kind() {
	case reflect.Bool:
		return val.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return val.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return val.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return val.Float(), nil
	case reflect.String:
		return val.String(), nil
	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return nil, nil
		}
		return encodeValue(val.Elem())
	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && val.IsNil() {
			return nil, nil
		}
		items := make([]any, val.Len())
		for i := range items {
			item, err := encodeValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return items, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, eris.Wrapf(ErrUnsupported, "map key %s", t.Key())
		}
		out := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			item, err := encodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = item
		}
		return out, nil
	case reflect.Struct:
		out := make(map[string]any)
		for _, field := range inspect.Fields(t) {
			if field.Opaque {
				continue
			}
			item, err := encodeValue(val.Field(field.Index))
			if err != nil {
				return nil, eris.Wrapf(err, "field %s.%s", t, field.Name)
			}
			out[field.Key] = item
		}
		return out, nil
	}
	return nil, eris.Wrapf(ErrUnsupported, "%s", t)
}

// DecodeComponent fills the struct dst points to from tree. Keys missing from
// the tree leave their fields untouched.
func DecodeComponent(tree map[string]any, dst any) error {
	val := reflect.ValueOf(dst)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return eris.Wrapf(ErrUnsupported, "decode target %T is not a struct pointer", dst)
	}
	return decodeValue(tree, val.Elem())
}

func decodeValue(src any, dst reflect.Value) error {
	t := dst.Type()
	if src == nil {
		dst.SetZero()
		return nil
	}
	if names, ok := enumNames(t); ok {
		if name, isName := src.(string); isName {
			for i, n := range names {
				if n == name {
					setEnum(dst, i)
					return nil
				}
			}
			return eris.Wrapf(ErrUnknownEnum, "%q for %s", name, t)
		}
	}
	if t == durationType {
		secs, ok := number(src)
		if !ok {
			return eris.Wrapf(ErrMismatch, "%T for %s", src, t)
		}
		dst.SetInt(int64(math.Round(secs * float64(time.Second))))
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool:
		b, ok := src.(bool)
		if !ok {
			return eris.Wrapf(ErrMismatch, "%T for %s", src, t)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := number(src)
		if !ok || dst.OverflowInt(int64(n)) {
			return eris.Wrapf(ErrMismatch, "%v for %s", src, t)
		}
		dst.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := number(src)
		if !ok || n < 0 || dst.OverflowUint(uint64(n)) {
			return eris.Wrapf(ErrMismatch, "%v for %s", src, t)
		}
		dst.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		n, ok := number(src)
		if !ok {
			return eris.Wrapf(ErrMismatch, "%T for %s", src, t)
		}
		dst.SetFloat(n)
	case reflect.String:
		s, ok := src.(string)
		if !ok {
			return eris.Wrapf(ErrMismatch, "%T for %s", src, t)
		}
		dst.SetString(s)
	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(t.Elem()))
		}
		return decodeValue(src, dst.Elem())
	case reflect.Slice, reflect.Array:
		items, ok := src.([]any)
		if !ok {
			return eris.Wrapf(ErrMismatch, "%T for %s", src, t)
		}
		if dst.Kind() == reflect.Slice {
			dst.Set(reflect.MakeSlice(t, len(items), len(items)))
		} else if len(items) > dst.Len() {
			return eris.Wrapf(ErrMismatch, "%d items for %s", len(items), t)
		}
		for i, item := range items {
			if err := decodeValue(item, dst.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		m, ok := src.(map[string]any)
		if !ok || t.Key().Kind() != reflect.String {
			return eris.Wrapf(ErrMismatch, "%T for %s", src, t)
		}
		out := reflect.MakeMapWithSize(t, len(m))
		for k, item := range m {
			elem := reflect.New(t.Elem()).Elem()
			if err := decodeValue(item, elem); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), elem)
		}
		dst.Set(out)
	case reflect.Struct:
		m, ok := src.(map[string]any)
		if !ok {
			return eris.Wrapf(ErrMismatch, "%T for %s", src, t)
		}
		for _, field := range inspect.Fields(t) {
			if field.Opaque {
				continue
			}
			item, found := m[field.Key]
			if !found {
				item, found = lookupFold(m, field.Key)
			}
			if !found {
				continue
			}
			if err := decodeValue(item, dst.Field(field.Index)); err != nil {
				return eris.Wrapf(err, "field %s.%s", t, field.Name)
			}
		}
	default:
		return eris.Wrapf(ErrUnsupported, "%s", t)
	}
	return nil
}

func lookupFold(m map[string]any, key string) (any, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func number(src any) (float64, bool) {
	switch n := src.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint8:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func enumIndex(val reflect.Value) int {
	if val.CanInt() {
		return int(val.Int())
	}
	return int(val.Uint())
}

func setEnum(dst reflect.Value, i int) {
	if dst.CanInt() {
		dst.SetInt(int64(i))
		return
	}
	dst.SetUint(uint64(i))
}
