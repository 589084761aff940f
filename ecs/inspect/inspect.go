// Package inspect gives tools read/write access to live component data by name.
package inspect

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/plus3/arkecs/ecs"
	"github.com/rotisserie/eris"
)

var (
	ErrNoField      = eris.New("inspect: no such field")
	ErrNotSettable  = eris.New("inspect: field cannot be set")
	ErrBadValue     = eris.New("inspect: value does not convert to field type")
	ErrNotComponent = eris.New("inspect: not a component struct")
)

// Durations are read and written as seconds when the value is a plain number.
var durationType = reflect.TypeFor[time.Duration]()

// EntityInfo is one row of an entity listing.
type EntityInfo struct {
	Entity         ecs.Entity
	Name           string
	Mask           ecs.Mask
	ComponentTypes []string
	ScriptCount    int
}

// Snapshot lists every live entity in ascending index order.
func Snapshot(storage *ecs.Storage) []EntityInfo {
	infos := make([]EntityInfo, 0, storage.Len())
	for e := range storage.Entities() {
		types := storage.ComponentTypes(e)
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = t.String()
		}
		sort.Strings(names)
		infos = append(infos, EntityInfo{
			Entity:         e,
			Name:           e.Name(),
			Mask:           e.Mask(),
			ComponentTypes: names,
			ScriptCount:    len(ecs.Scripts(e)),
		})
	}
	return infos
}

// Filter keeps the rows whose name or component list contains text, ignoring case.
func Filter(infos []EntityInfo, text string) []EntityInfo {
	if text == "" {
		return infos
	}
	needle := strings.ToLower(text)
	var out []EntityInfo
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name), needle) ||
			strings.Contains(strings.ToLower(strings.Join(info.ComponentTypes, " ")), needle) {
			out = append(out, info)
		}
	}
	return out
}

// Component returns a pointer to the component of e registered under typeName
// (as printed by reflect.Type.String, e.g. "particles.Particles").
func Component(e ecs.Entity, typeName string) (any, error) {
	storage := e.Storage()
	if storage == nil || !e.Valid() {
		return nil, eris.Wrapf(ecs.ErrStaleHandle, "lookup %s", typeName)
	}
	id, ok := storage.Registry().IdByName(typeName)
	if !ok {
		return nil, eris.Wrapf(ecs.ErrNotRegistered, "%s", typeName)
	}
	if !e.Mask().Has(id) {
		return nil, eris.Wrapf(ecs.ErrComponentNotFound, "%s on %q", typeName, e.Name())
	}
	return storage.ComponentById(e, id), nil
}

// GetField reads a field of component by name. Nested struct fields are reached
// with a dotted path such as "Emitter.X".
func GetField(component any, path string) (any, error) {
	val, err := lookup(component, path)
	if err != nil {
		return nil, err
	}
	return val.Interface(), nil
}

// SetField writes value into the named field of component, which must be a
// pointer. Numbers convert between integer and float kinds; strings are parsed
// for numeric and bool fields. A number set on a time.Duration is in seconds.
func SetField(component any, path string, value any) error {
	val, err := lookup(component, path)
	if err != nil {
		return err
	}
	if !val.CanSet() {
		return eris.Wrapf(ErrNotSettable, "%s", path)
	}
	if err := assign(val, value); err != nil {
		return eris.Wrapf(err, "set %s", path)
	}
	return nil
}

func lookup(component any, path string) (reflect.Value, error) {
	val := reflect.ValueOf(component)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return reflect.Value{}, eris.Wrapf(ErrNotComponent, "nil %s", val.Type())
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return reflect.Value{}, eris.Wrapf(ErrNotComponent, "%s", val.Type())
	}

	for _, name := range strings.Split(path, ".") {
		for val.Kind() == reflect.Ptr && !val.IsNil() {
			val = val.Elem()
		}
		if val.Kind() != reflect.Struct {
			return reflect.Value{}, eris.Wrapf(ErrNoField, "%s in %s", name, path)
		}
		idx := -1
		for _, field := range Fields(val.Type()) {
			if field.Name == name {
				idx = field.Index
				break
			}
		}
		if idx < 0 {
			return reflect.Value{}, eris.Wrapf(ErrNoField, "%s on %s", name, val.Type())
		}
		val = val.Field(idx)
	}
	return val, nil
}

func assign(field reflect.Value, value any) error {
	src := reflect.ValueOf(value)
	if !src.IsValid() {
		field.SetZero()
		return nil
	}
	if src.Type().AssignableTo(field.Type()) {
		field.Set(src)
		return nil
	}
	if field.Type() == durationType {
		secs, ok := asFloat(src)
		if !ok {
			return eris.Wrapf(ErrBadValue, "%v to %s", value, field.Type())
		}
		field.SetInt(int64(math.Round(secs * float64(time.Second))))
		return nil
	}

	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := asFloat(src)
		if !ok {
			return eris.Wrapf(ErrBadValue, "%v to %s", value, field.Type())
		}
		if field.OverflowInt(int64(n)) {
			return eris.Wrapf(ErrBadValue, "%v overflows %s", value, field.Type())
		}
		field.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := asFloat(src)
		if !ok || n < 0 {
			return eris.Wrapf(ErrBadValue, "%v to %s", value, field.Type())
		}
		if field.OverflowUint(uint64(n)) {
			return eris.Wrapf(ErrBadValue, "%v overflows %s", value, field.Type())
		}
		field.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		n, ok := asFloat(src)
		if !ok {
			return eris.Wrapf(ErrBadValue, "%v to %s", value, field.Type())
		}
		field.SetFloat(n)
	case reflect.Bool:
		switch src.Kind() {
		case reflect.Bool:
			field.SetBool(src.Bool())
		case reflect.String:
			b, err := strconv.ParseBool(src.String())
			if err != nil {
				return eris.Wrapf(ErrBadValue, "%q to bool", src.String())
			}
			field.SetBool(b)
		default:
			return eris.Wrapf(ErrBadValue, "%v to bool", value)
		}
	case reflect.String:
		if src.Kind() != reflect.String {
			return eris.Wrapf(ErrBadValue, "%v to string", value)
		}
		field.SetString(src.String())
	default:
		if src.Type().ConvertibleTo(field.Type()) {
			field.Set(src.Convert(field.Type()))
			return nil
		}
		return eris.Wrapf(ErrBadValue, "%s to %s", src.Type(), field.Type())
	}
	return nil
}

func asFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		return f, err == nil
	}
	return 0, false
}
