package modelcache

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// VaryBy maps attribute names to the values a key is parameterized by.
type VaryBy map[string]any

// Record lets a type expose its cacheable attributes by name.
// Types that don't implement it are read by reflection: a field tagged
// `modelcache:"name"`, then a field whose json tag is name, then a field
// whose Go name equals name case-insensitively.
type Record interface {
	CacheField(name string) (value any, ok bool)
}

// ObjectKey builds the key addressing a single record. The bracket suffix is
// always present. Pairs are sorted by name; any of `%,=[]` inside a name or
// value is written as %XX.
func ObjectKey(t Type, vary VaryBy) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(t.Label())
	b.WriteByte('[')
	writeVary(&b, vary)
	b.WriteByte(']')
	return b.String()
}

// NamedKey builds the key addressing a named set of records. The bracket
// suffix is omitted when vary is empty.
func NamedKey(t Type, set string, vary VaryBy) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(t.Label())
	b.WriteByte(':')
	b.WriteString(set)
	if len(vary) > 0 {
		b.WriteByte('[')
		writeVary(&b, vary)
		b.WriteByte(']')
	}
	return b.String()
}

// InstanceKey reads attrs off r and builds its object key. With no attrs the
// descriptor's primary attribute is used; several attrs form a composite key.
func InstanceKey(d Descriptor, r any, attrs ...string) (string, error) {
	if len(attrs) == 0 {
		attrs = []string{d.Primary}
	}
	vary := make(VaryBy, len(attrs))
	for _, a := range attrs {
		v, err := fieldValue(r, a)
		if err != nil {
			return "", fmt.Errorf("%w: %s.%s", err, d.Label(), a)
		}
		vary[a] = v
	}
	return ObjectKey(d.Type, vary), nil
}

func writeVary(b *strings.Builder, vary VaryBy) {
	names := make([]string, 0, len(vary))
	for k := range vary {
		names = append(names, k)
	}
	sort.Strings(names)
	for i, k := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		writeEscaped(b, k)
		b.WriteByte('=')
		writeEscaped(b, formatValue(vary[k]))
	}
}

// writeEscaped percent-encodes the bytes that delimit vary pairs, so
// {a: "1,b=2"} and {a: "1", b: "2"} get distinct keys.
func writeEscaped(b *strings.Builder, s string) {
	if !strings.ContainsAny(s, "%,=[]") {
		b.WriteString(s)
		return
	}
	const hex = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '%', ',', '=', '[', ']':
			b.WriteByte('%')
			b.WriteByte(hex[ch>>4])
			b.WriteByte(hex[ch&0xF])
		default:
			b.WriteByte(ch)
		}
	}
}

// formatValue renders v without locale or platform dependence.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return x.String()
	case encoding.TextMarshaler:
		if t, err := x.MarshalText(); err == nil {
			return string(t)
		}
	}

	// named kinds (type ID int64) and pointers to scalars
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	}
	return fmt.Sprint(rv.Interface())
}

func fieldValue(r any, name string) (any, error) {
	if name == "" {
		return nil, ErrUnknownField
	}
	if rec, ok := r.(Record); ok {
		if v, ok := rec.CacheField(name); ok {
			return v, nil
		}
		return nil, ErrUnknownField
	}

	rv := reflect.ValueOf(r)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, ErrUnknownField
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, ErrUnknownField
	}
	rt := rv.Type()

	match := -1
	for pass := 0; pass < 3 && match < 0; pass++ {
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			var hit bool
			switch pass {
			case 0:
				hit = tagName(f.Tag.Get("modelcache")) == name
			case 1:
				hit = tagName(f.Tag.Get("json")) == name
			case 2:
				hit = strings.EqualFold(f.Name, name)
			}
			if hit {
				match = i
				break
			}
		}
	}
	if match < 0 {
		return nil, ErrUnknownField
	}
	return rv.Field(match).Interface(), nil
}

func tagName(tag string) string {
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	if tag == "-" {
		return ""
	}
	return tag
}
