package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// hashedMarker prefixes the hash segment of a folded key.
const hashedMarker = "#"

// KeySerializer builds a cache key from a namespace and arbitrary args.
// Equal args must produce equal keys across processes, so that a shared
// backend sees the same key from every instance.
type KeySerializer interface {
	SerializeKey(namespace string, args ...any) string
}

// defaultKeySerializer implements KeySerializer using reflection-based serialization.
type defaultKeySerializer struct {
	maxKeyLength int
}

// NewDefaultKeySerializer creates a serializer that never folds keys.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// NewKeySerializer creates a serializer that folds keys longer than
// maxKeyLength. The namespace is kept verbatim so namespace patterns such as
// "stations:list*" still select folded keys.
func NewKeySerializer(maxKeyLength int) KeySerializer {
	return &defaultKeySerializer{maxKeyLength: maxKeyLength}
}

// SerializeKey builds a cache key from namespace and args.
func (s *defaultKeySerializer) SerializeKey(namespace string, args ...any) string {
	if len(args) == 0 {
		return namespace
	}

	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, s.serializeValue(reflect.ValueOf(arg)))
	}
	rest := strings.Join(parts, KeySeparator)

	key := namespace + KeySeparator + rest
	if s.maxKeyLength > 0 && len(key) > s.maxKeyLength {
		return namespace + KeySeparator + hashedMarker + strconv.FormatUint(xxhash.Sum64String(rest), 16)
	}
	return key
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

var segmentEscaper = strings.NewReplacer(
	`\`, `\\`,
	`,`, `\,`,
	`=`, `\=`,
	`[`, `\[`,
	`]`, `\]`,
	`{`, `\{`,
	`}`, `\}`,
	`:`, `\:`,
)

// escapeSegment backslash-escapes the characters that delimit lists, maps,
// structs and args, so text can never forge a boundary. A literal "nil" is
// escaped to stay apart from a nil value.
func escapeSegment(text string) string {
	if text == "nil" {
		return `\nil`
	}
	return segmentEscaper.Replace(text)
}

// serializeValue handles individual argument serialization based on kind.
func (s *defaultKeySerializer) serializeValue(rv reflect.Value) string {
	if !rv.IsValid() {
		return "nil"
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		if rv.Type().Implements(textMarshalerType) {
			return s.marshalText(rv)
		}
		return s.serializeValue(rv.Elem())
	}

	// Decimals, uuids and times describe themselves best.
	if rv.Type().Implements(textMarshalerType) {
		return s.marshalText(rv)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.String:
		return escapeSegment(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return "[]"
		}
		return s.serializeList(rv)
	case reflect.Array:
		return s.serializeList(rv)
	case reflect.Map:
		return s.serializeMap(rv)
	case reflect.Struct:
		return s.serializeStruct(rv)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Addresses differ between processes and would never match.
		return rv.Type().String()
	}

	return s.jsonFallback(rv)
}

func (s *defaultKeySerializer) marshalText(rv reflect.Value) string {
	text, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return s.jsonFallback(rv)
	}
	return escapeSegment(string(text))
}

// serializeList handles slices and arrays recursively. A nil slice and an
// empty slice produce the same segment.
func (s *defaultKeySerializer) serializeList(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.serializeValue(rv.Index(i))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// serializeMap handles map serialization with sorted keys for determinism.
func (s *defaultKeySerializer) serializeMap(rv reflect.Value) string {
	if rv.IsNil() || rv.Len() == 0 {
		return "{}"
	}

	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.serializeValue(iter.Key())+"="+s.serializeValue(iter.Value()))
	}
	sort.Strings(pairs)

	return "{" + strings.Join(pairs, ",") + "}"
}

// serializeStruct walks exported fields in declaration order. The cachekey
// tag renames a field; cachekey:"-" leaves it out of the key.
func (s *defaultKeySerializer) serializeStruct(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rv.NumField())

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag, ok := field.Tag.Lookup("cachekey"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}

		parts = append(parts, name+"="+s.serializeValue(rv.Field(i)))
	}

	return "{" + strings.Join(parts, ",") + "}"
}

// jsonFallback provides JSON serialization as a last resort.
func (s *defaultKeySerializer) jsonFallback(rv reflect.Value) string {
	if !rv.CanInterface() {
		return rv.Type().String()
	}
	data, err := json.Marshal(rv.Interface())
	if err != nil {
		return fmt.Sprintf("fallback:%s", rv.Type().String())
	}
	return "json:" + escapeSegment(string(data))
}
