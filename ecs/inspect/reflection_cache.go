package inspect

import (
	"reflect"
	"strings"
	"sync"
)

// FieldInfo describes one exported field of a component struct as the inspector
// and the serializer see it.
type FieldInfo struct {
	Name  string
	Type  reflect.Type
	Index int

	// Key is the name used in serialized trees: the `json` tag name if present,
	// the lower-cased name for structs made only of one-letter fields (X/Y
	// vectors, R/G/B/A colours), otherwise Name.
	Key string

	// Opaque fields (funcs, channels and fields tagged `json:"-"`) can be listed
	// but are never serialized.
	Opaque bool
}

// Kind returns the kind of the field type.
func (f FieldInfo) Kind() reflect.Kind { return f.Type.Kind() }

// ReflectionCache memoizes field enumeration per component type. It is safe for
// concurrent use.
type ReflectionCache struct {
	mu     sync.RWMutex
	fields map[reflect.Type][]FieldInfo
}

func NewReflectionCache() *ReflectionCache {
	return &ReflectionCache{fields: make(map[reflect.Type][]FieldInfo)}
}

// GetFields returns the exported fields of t in declaration order. Non-struct
// types have no fields.
func (rc *ReflectionCache) GetFields(t reflect.Type) []FieldInfo {
	rc.mu.RLock()
	cached, ok := rc.fields[t]
	rc.mu.RUnlock()
	if ok {
		return cached
	}

	fields := describe(t)

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if cached, ok := rc.fields[t]; ok {
		return cached
	}
	rc.fields[t] = fields
	return fields
}

func describe(t reflect.Type) []FieldInfo {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var fields []FieldInfo
	short := true
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		f := FieldInfo{Name: sf.Name, Type: sf.Type, Index: i, Key: sf.Name}
		switch sf.Type.Kind() {
		case reflect.Func, reflect.Chan:
			f.Opaque = true
		}
		if tag, ok := sf.Tag.Lookup("json"); ok {
			name, _, _ := strings.Cut(tag, ",")
			switch name {
			case "-":
				f.Opaque = true
			case "":
			default:
				f.Key = name
			}
		}
		short = short && len(sf.Name) == 1
		fields = append(fields, f)
	}
	if short {
		for i := range fields {
			if fields[i].Key == fields[i].Name {
				fields[i].Key = strings.ToLower(fields[i].Name)
			}
		}
	}
	return fields
}

var globalReflectionCache = NewReflectionCache()

// Fields enumerates the exported fields of t using the shared cache.
func Fields(t reflect.Type) []FieldInfo {
	return globalReflectionCache.GetFields(t)
}
