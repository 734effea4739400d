package amf3

import (
	"fmt"
	"time"
)

// AMF3 type markers.
const (
	TypeUndefined = byte(0)
	TypeNull      = byte(1)
	TypeFalse     = byte(2)
	TypeTrue      = byte(3)
	TypeInteger   = byte(4)
	TypeDouble    = byte(5)
	TypeString    = byte(6)
	TypeXMLDoc    = byte(7) // legacy flash.xml.XMLDocument
	TypeDate      = byte(8)
	TypeArray     = byte(9)
	TypeObject    = byte(10)
	TypeXML       = byte(11)
	TypeByteArray = byte(12)

	// TypeAMF3 is the AMF0 "switch to AMF3" marker. Seen in the middle of
	// an AMF3 stream it is followed by another complete value.
	TypeAMF3 = byte(17)
)

const (
	// MaxInt and MinInt are the bounds of the signed 29-bit integer.
	// Anything outside is encoded as a double.
	MaxInt = 268435455
	MinInt = -268435456

	// EmptyString is the handle of the empty string. It also terminates
	// the key/value stream of arrays and dynamic objects.
	EmptyString = byte(0x01)

	// TypeNameKey is the key the class name of a record is exposed under
	// when a record is flattened into a plain map.
	TypeNameKey = "$type"

	// DefaultCapacity is the initial buffer size of the Encoder.
	DefaultCapacity = 4096
	// MaxCapacity is the default ceiling the Encoder buffer may grow up to.
	MaxCapacity = 256 * 256
)

var tagNames = map[byte]string{
	TypeUndefined: "UNDEFINED",
	TypeNull:      "NULL",
	TypeFalse:     "FALSE",
	TypeTrue:      "TRUE",
	TypeInteger:   "INTEGER",
	TypeDouble:    "DOUBLE",
	TypeString:    "STRING",
	TypeXMLDoc:    "XML_DOC",
	TypeDate:      "DATE",
	TypeArray:     "ARRAY",
	TypeObject:    "OBJECT",
	TypeXML:       "XML",
	TypeByteArray: "BYTE_ARRAY",
	TypeAMF3:      "AMF3",
}

// TagName returns the name of the type marker.
func TagName(t byte) (name string) {
	name = tagNames[t]
	if name == "" {
		name = fmt.Sprintf("%d", t)
	}
	return
}

// Value is any value the codec is able to handle. Decoding produces
//
//	Undefined, nil, bool, int32, float64, string, time.Time,
//	Array, *AssocArray, *Record, []byte, XML, XMLDocument
//
// Encoding accepts the same set plus plain Go values (numbers of any size,
// slices, maps with string keys, structs).
type Value = interface{}

// Undefined is the AMF3 undefined value.
type Undefined struct{}

// Array is a dense (strict) array.
type Array []Value

// XML is the payload of the XML type (E4X). The codec never parses it.
type XML string

// XMLDocument is the payload of the legacy XMLDocument type.
type XMLDocument string

// Fields is a string keyed map preserving the insertion order.
type Fields struct {
	keys   []string
	values map[string]Value
}

// Set stores the value. Keys keep the position of their first insertion.
func (f *Fields) Set(key string, value Value) {
	if f.values == nil {
		f.values = make(map[string]Value)
	}
	if _, exist := f.values[key]; exist == false {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *Fields) Get(key string) (Value, bool) {
	v, found := f.values[key]
	return v, found
}

func (f *Fields) Delete(key string) {
	if _, exist := f.values[key]; exist == false {
		return
	}
	delete(f.values, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (f *Fields) Keys() []string {
	return f.keys
}

func (f *Fields) Len() int {
	return len(f.keys)
}

// Range calls fn for every key in insertion order until fn returns false.
func (f *Fields) Range(fn func(key string, value Value) bool) {
	for _, k := range f.keys {
		if fn(k, f.values[k]) == false {
			return
		}
	}
}

// AssocArray is an array with string keys (ECMA array). Positional
// elements of a mixed array are stored under their decimal index.
type AssocArray struct {
	Fields
}

// NewAssocArray
func NewAssocArray() *AssocArray {
	return &AssocArray{}
}

// Record is an object. Type is the class alias (empty for anonymous objects).
// Trait is the class definition the record was decoded with. If it is nil,
// the record is encoded as a dynamic object of class Type.
type Record struct {
	Type  string
	Trait *Trait
	Fields
}

// NewRecord
func NewRecord(typeName string) *Record {
	return &Record{Type: typeName}
}

// Kind identifies the variant of a Value.
type Kind int

const (
	KindUnknown Kind = iota
	KindUndefined
	KindNull
	KindBool
	KindInt
	KindDouble
	KindString
	KindDate
	KindArray
	KindAssocArray
	KindRecord
	KindByteArray
	KindXML
	KindXMLDocument
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindUndefined:   "undefined",
	KindNull:        "null",
	KindBool:        "bool",
	KindInt:         "int",
	KindDouble:      "double",
	KindString:      "string",
	KindDate:        "date",
	KindArray:       "array",
	KindAssocArray:  "assoc-array",
	KindRecord:      "record",
	KindByteArray:   "byte-array",
	KindXML:         "xml",
	KindXMLDocument: "xml-document",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// KindOf returns the variant of v. Values the codec has to encode through
// reflection report KindUnknown.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case Undefined:
		return KindUndefined
	case bool:
		return KindBool
	case int32:
		return KindInt
	case float64:
		return KindDouble
	case string:
		return KindString
	case time.Time:
		return KindDate
	case Array:
		return KindArray
	case *AssocArray:
		return KindAssocArray
	case *Record:
		return KindRecord
	case []byte:
		return KindByteArray
	case XML:
		return KindXML
	case XMLDocument:
		return KindXMLDocument
	}
	return KindUnknown
}
