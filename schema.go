package searchcore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/searchcore/internal/config"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

const (
	tagKey = "search"
	pkTag  = "pk"
	// pkKey is where stored objects keep their primary key.
	pkKey = "id"
)

var timeType = reflect.TypeOf(time.Time{})

// schemas caches parsed struct tags per Go type; a type's tags never change at runtime.
var schemas, _ = lru.New[reflect.Type, *schemaMeta](256)

// schemaFor returns the parsed schema of T, parsing it once.
func schemaFor[T any]() (*schemaMeta, error) {
	t := reflect.TypeFor[T]()
	if meta, ok := schemas.Get(t); ok {
		return meta, nil
	}
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, err
	}
	schemas.Add(t, meta)
	return meta, nil
}

// schemaMeta holds parsed struct tag metadata, shared by every TypedIndex of a type.
type schemaMeta struct {
	typ    reflect.Type
	pkIdx  int
	pkName string
	fields []config.FieldConfig
	// renames maps the JSON key of a field without a json tag to its field name
	renames map[string]string
}

// parseSchema reflects on T and extracts its search struct tags.
//
//	type Article struct {
//		ID     string   `json:"id" search:"pk"`
//		Title  string   `json:"title" search:"text,boost=2"`
//		Tags   []string `json:"tags" search:"related_id"`
//		Rating *float64 `json:"rating" search:"filterable"`
//	}
//
// The field name is the JSON name. Filterable value types are inferred from the Go type
// unless set with type=. Pointer fields are nullable.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("searchcore: type %v is not a struct", t)
	}

	meta := &schemaMeta{typ: t, pkIdx: -1}
	names := make(map[string]string)
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		name := jsonName(f)
		if prev, dup := names[name]; dup {
			return nil, fmt.Errorf("searchcore: fields %s and %s of %s share the name %q", prev, f.Name, t, name)
		}
		names[name] = f.Name
		if name != f.Name && !hasJSONName(f) {
			if meta.renames == nil {
				meta.renames = make(map[string]string)
			}
			meta.renames[f.Name] = name
		}

		if tag == pkTag {
			if meta.pkIdx != -1 {
				return nil, fmt.Errorf("searchcore: duplicate pk tag on field %s", f.Name)
			}
			meta.pkIdx = i
			meta.pkName = name
			continue
		}
		fc, err := parseTag(f, name, tag)
		if err != nil {
			return nil, err
		}
		meta.fields = append(meta.fields, fc)
	}

	if meta.pkIdx == -1 {
		return nil, fmt.Errorf("searchcore: no field with `search:\"pk\"` tag in %s", t)
	}
	if meta.pkName != pkKey {
		if other, taken := names[pkKey]; taken {
			return nil, fmt.Errorf("searchcore: field %s of %s is named %q, reserved for the primary key", other, t, pkKey)
		}
	}
	return meta, nil
}

// parseTag reads "<kind>[,boost=N][,type=T][,nullable]".
func parseTag(f reflect.StructField, name, tag string) (config.FieldConfig, error) {
	parts := strings.Split(tag, ",")
	fc := config.FieldConfig{Name: name, Kind: parts[0]}
	for _, opt := range parts[1:] {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "boost":
			b, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fc, fmt.Errorf("searchcore: field %s: invalid boost %q", f.Name, value)
			}
			fc.Boost = b
		case "type":
			fc.Type = value
		case "nullable":
			fc.Nullable = true
		default:
			return fc, fmt.Errorf("searchcore: field %s: unknown option %q", f.Name, key)
		}
	}

	ft := f.Type
	if ft.Kind() == reflect.Pointer {
		fc.Nullable = true
		ft = ft.Elem()
	}
	if schema.Kind(fc.Kind) == schema.Filterable && fc.Type == "" {
		vt, ok := valueType(ft)
		if !ok {
			return fc, fmt.Errorf("searchcore: field %s: cannot infer a filterable type from %s", f.Name, ft)
		}
		fc.Type = string(vt)
	}
	return fc, nil
}

func valueType(t reflect.Type) (schema.ValueType, bool) {
	if t == timeType {
		return schema.Time, true
	}
	switch t.Kind() {
	case reflect.String:
		return schema.String, true
	case reflect.Bool:
		return schema.Bool, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return schema.Number, true
	}
	return "", false
}

func jsonName(f reflect.StructField) string {
	if hasJSONName(f) {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	}
	return strings.ToLower(f.Name)
}

func hasJSONName(f reflect.StructField) bool {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	return name != "" && name != "-"
}

// toObject renders item as a stored object with its primary key under "id".
func (m *schemaMeta) toObject(item any) (map[string]any, error) {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil item", domain.ErrMapping)
		}
		v = v.Elem()
	}
	pk := fmt.Sprint(v.Field(m.pkIdx).Interface())
	if pk == "" {
		return nil, fmt.Errorf("%w: empty primary key", domain.ErrMapping)
	}

	data, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMapping, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMapping, err)
	}
	for key, name := range m.renames {
		if v, ok := obj[key]; ok {
			delete(obj, key)
			obj[name] = v
		}
	}
	if m.pkName != pkKey {
		obj[pkKey] = pk
	}
	return obj, nil
}

// fromObject rebuilds a T from a stored object.
func fromObject[T any](m *schemaMeta, obj map[string]any) (T, error) {
	var out T
	if m.pkName != pkKey {
		obj = copyWithout(obj, pkKey)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return out, fmt.Errorf("encode object: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", m.typ, err)
	}
	return out, nil
}

func copyWithout(obj map[string]any, key string) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if k != key {
			out[k] = v
		}
	}
	return out
}
