package docxgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ValueKind identifies what a bound Value holds
type ValueKind int

const (
	KindText ValueKind = iota
	KindImage
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Image is an encoded image payload. MIME may be left empty, in which case the
// format is detected from the data. Width and height are in EMU; zero means
// they are derived from the pixel size of the image.
type Image struct {
	Data      []byte
	MIME      string
	WidthEMU  int64
	HeightEMU int64
}

// Value is a datum bound to a placeholder name.
type Value struct {
	Kind  ValueKind
	Text  string
	Image *Image
	List  []Context
}

// Text creates a text value
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// ImageOf creates an image value
func ImageOf(img Image) Value {
	return Value{Kind: KindImage, Image: &img}
}

// List creates a list value whose elements are record contexts
func List(records ...Context) Value {
	return Value{Kind: KindList, List: records}
}

// Context maps placeholder names to values. Nested records use dotted names
// ("customer.name"); repeated records are bound as a List.
type Context map[string]Value

// Names returns the bound names in sorted order
func (c Context) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Scope is a chain of contexts. Lookups search the innermost context first,
// so names bound in a loop record shadow names of the enclosing data.
type Scope struct {
	vars   Context
	parent *Scope
}

// NewScope creates a root scope for ctx
func NewScope(ctx Context) *Scope {
	return &Scope{vars: ctx}
}

// Child creates a scope nested in s
func (s *Scope) Child(ctx Context) *Scope {
	return &Scope{vars: ctx, parent: s}
}

// Lookup resolves name, innermost scope first
func (s *Scope) Lookup(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// FromJSON decodes a JSON object into a Context. See FromMap for the mapping rules.
func FromJSON(data []byte) (Context, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return FromMap(raw)
}

// FromMap converts generic data into a Context.
//
// Scalars become text (nil becomes the empty string). Nested objects are
// flattened into dotted names. Arrays become lists: object elements become
// records, scalar elements become records holding the single name "value".
// Image, *Image, Value, Context and []Context are taken as they are.
func FromMap(data map[string]interface{}) (Context, error) {
	ctx := make(Context, len(data))
	if err := flattenInto(ctx, "", data); err != nil {
		return nil, err
	}
	return ctx, nil
}

func flattenInto(ctx Context, prefix string, data map[string]interface{}) error {
	for key, raw := range data {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := raw.(map[string]interface{}); ok {
			if err := flattenInto(ctx, name, nested); err != nil {
				return err
			}
			continue
		}
		v, err := toValue(raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		ctx[name] = v
	}
	return nil
}

func toValue(raw interface{}) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Text(""), nil
	case Value:
		return v, nil
	case Image:
		return ImageOf(v), nil
	case *Image:
		if v == nil {
			return Text(""), nil
		}
		return ImageOf(*v), nil
	case Context:
		return List(v), nil
	case []Context:
		return List(v...), nil
	case string:
		return Text(v), nil
	case []byte:
		return Text(string(v)), nil
	case fmt.Stringer:
		return Text(v.String()), nil
	case bool:
		return Text(strconv.FormatBool(v)), nil
	case int:
		return Text(strconv.Itoa(v)), nil
	case int64:
		return Text(strconv.FormatInt(v, 10)), nil
	case int32:
		return Text(strconv.FormatInt(int64(v), 10)), nil
	case uint:
		return Text(strconv.FormatUint(uint64(v), 10)), nil
	case uint64:
		return Text(strconv.FormatUint(v, 10)), nil
	case float64:
		return Text(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case float32:
		return Text(strconv.FormatFloat(float64(v), 'f', -1, 32)), nil
	case []map[string]interface{}:
		records := make([]Context, 0, len(v))
		for _, item := range v {
			rec, err := FromMap(item)
			if err != nil {
				return Value{}, err
			}
			records = append(records, rec)
		}
		return List(records...), nil
	case []interface{}:
		records := make([]Context, 0, len(v))
		for i, item := range v {
			if obj, ok := item.(map[string]interface{}); ok {
				rec, err := FromMap(obj)
				if err != nil {
					return Value{}, fmt.Errorf("item %d: %w", i, err)
				}
				records = append(records, rec)
				continue
			}
			iv, err := toValue(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			records = append(records, Context{"value": iv})
		}
		return List(records...), nil
	case []string:
		records := make([]Context, len(v))
		for i, s := range v {
			records[i] = Context{"value": Text(s)}
		}
		return List(records...), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}
