package amf3

import (
	"encoding/binary"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/ergo-services/amf3/lib"
)

const (
	// tables with more entries are reallocated on Reset instead of being
	// cleared
	tableThreshold = 5

	// the largest length U29 handle can carry
	maxLength = 0x0fffffff
)

// EncodeOptions
type EncodeOptions struct {
	// Capacity is the initial size of the buffer. Default is DefaultCapacity.
	Capacity int
	// DisableGrowth makes the buffer fixed. Writing beyond Capacity fails
	// with ErrCapacityExceeded.
	DisableGrowth bool
	// MaxCapacity is the ceiling for the buffer growth. Default is
	// MaxCapacity, negative value means no limit.
	MaxCapacity int
	// ResetObjects clears the object table on every Encode call like it is
	// done for the string table. By default the object table lives until
	// Reset, so the same value written by several Encode calls is written
	// as a reference (a Decoder can't resolve it since it starts every
	// top-level value with empty tables).
	ResetObjects bool
	// Fields lists the fields of values with no built-in representation.
	// Default is ReflectFields.
	Fields FieldEnumerator
	Logger log.Logger
}

// Encoder writes AMF3 values into its own buffer. Several top-level values
// can be written one after another, Bytes returns all of them.
//
// Encoder is not safe for concurrent use.
type Encoder struct {
	buf *lib.Buffer

	strings     map[string]int
	objects     map[interface{}]int
	objectCount int

	resetObjects bool
	fields       FieldEnumerator
	logger       log.Logger
}

var _ ExternalWriter = (*Encoder)(nil)

// identity of maps and slices
type refIdentity struct {
	t reflect.Type
	p uintptr
	n int
}

// dates are referenced by their value
type dateIdentity float64

// NewEncoder creates an encoder with the buffer of the given size. If grow
// is false the buffer never grows.
func NewEncoder(size int, grow bool) *Encoder {
	return NewEncoderWithOptions(EncodeOptions{Capacity: size, DisableGrowth: grow == false})
}

// NewEncoderWithOptions
func NewEncoderWithOptions(options EncodeOptions) *Encoder {
	if options.Capacity < 1 {
		options.Capacity = DefaultCapacity
	}
	limit := options.MaxCapacity
	switch {
	case limit == 0:
		limit = MaxCapacity
	case limit < 0:
		limit = 0
	}
	if options.Fields == nil {
		options.Fields = ReflectFields
	}
	if options.Logger == nil {
		options.Logger = log.NewNopLogger()
	}

	return &Encoder{
		buf:          lib.NewBuffer(options.Capacity, options.DisableGrowth, limit),
		strings:      make(map[string]int, tableThreshold),
		objects:      make(map[interface{}]int, tableThreshold),
		resetObjects: options.ResetObjects,
		fields:       options.Fields,
		logger:       options.Logger,
	}
}

// Bytes returns the encoded data. It is valid until the next write or Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf.B
}

// Len returns the number of written bytes.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// Cap returns the current capacity of the buffer.
func (e *Encoder) Cap() int {
	return e.buf.Cap()
}

// Reset drops the written data, returns the buffer to its original size
// and clears the reference tables.
func (e *Encoder) Reset() {
	e.buf.Restore()

	if len(e.strings) > tableThreshold {
		e.strings = make(map[string]int, tableThreshold)
	} else {
		clear(e.strings)
	}
	if len(e.objects) > tableThreshold {
		e.objects = make(map[interface{}]int, tableThreshold)
	} else {
		clear(e.objects)
	}
	e.objectCount = 0
}

// Encode writes v as a top-level value. The string table is cleared first,
// the object table is cleared only if EncodeOptions.ResetObjects is set.
func (e *Encoder) Encode(v Value) error {
	clear(e.strings)
	if e.resetObjects {
		clear(e.objects)
		e.objectCount = 0
	}

	if err := e.WriteValue(v); err != nil {
		level.Debug(e.logger).Log("event", "encode failed", "len", e.buf.Len(), "err", err)
		return err
	}
	return nil
}

// WriteObject is the same as Encode.
func (e *Encoder) WriteObject(v Value) error {
	return e.Encode(v)
}

// WriteValue writes v without touching the reference tables.
func (e *Encoder) WriteValue(v Value) error {
	switch x := v.(type) {
	case nil:
		return e.WriteNull()
	case Undefined:
		return e.WriteUndefined()
	case bool:
		return e.WriteBool(x)

	// do not use reflect.ValueOf(v) for the common types, it's too expensive
	case int32:
		return e.WriteInt(int64(x))
	case int:
		return e.WriteInt(int64(x))
	case int8:
		return e.WriteInt(int64(x))
	case int16:
		return e.WriteInt(int64(x))
	case int64:
		return e.WriteInt(x)
	case uint8:
		return e.WriteInt(int64(x))
	case uint16:
		return e.WriteInt(int64(x))
	case uint32:
		return e.WriteInt(int64(x))
	case uint:
		return e.writeUint(uint64(x))
	case uint64:
		return e.writeUint(x)
	case float32:
		return e.WriteDouble(float64(x))
	case float64:
		return e.WriteDouble(x)

	case string:
		return e.WriteString(x)
	case time.Time:
		return e.WriteDate(x)
	case XML:
		return e.writeXML(TypeXML, string(x), v)
	case XMLDocument:
		return e.writeXML(TypeXMLDoc, string(x), v)

	case []byte:
		if x == nil {
			return e.WriteNull()
		}
		return e.writeByteArray(x)
	case Array:
		if x == nil {
			return e.WriteNull()
		}
		return e.writeArray(x)
	case *AssocArray:
		if x == nil {
			return e.WriteNull()
		}
		return e.writeAssocArray(x)
	case *Record:
		if x == nil {
			return e.WriteNull()
		}
		return e.writeRecord(x)

	case Externalizable:
		return x.WriteExternal(e)
	}

	return e.writeReflect(reflect.ValueOf(v), v)
}

// WriteReference writes the reference to v if v has been written before.
// Otherwise v takes the next slot of the object table. Values with no
// identity (struct values, arrays) take a slot as well, so the indexes
// stay the same as on the decoding side.
func (e *Encoder) WriteReference(v Value) (bool, error) {
	if v == nil {
		return false, nil
	}
	key, ok := identityOf(v)
	if ok {
		if idx, found := e.objects[key]; found {
			return true, e.WriteU29(int32(idx << 1))
		}
		e.objects[key] = e.objectCount
	}
	e.objectCount++
	return false, nil
}

func identityOf(v Value) (interface{}, bool) {
	switch x := v.(type) {
	case time.Time:
		return dateIdentity(timeToMillis(x)), true
	case XML, XMLDocument:
		return v, true
	}

	// zero-size data may share its address with other zero-size data,
	// such values get a slot but no identity
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.Type().Elem().Size() == 0 {
			return nil, false
		}
		return v, true
	case reflect.Map:
		return refIdentity{t: rv.Type(), p: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 || rv.Type().Elem().Size() == 0 {
			return nil, false
		}
		return refIdentity{t: rv.Type(), p: rv.Pointer(), n: rv.Len()}, true
	}
	return nil, false
}

func (e *Encoder) grow(n int) ([]byte, error) {
	before := e.buf.Cap()
	b, err := e.buf.Grow(n)
	if err != nil {
		level.Debug(e.logger).Log("event", "capacity exceeded", "len", e.buf.Len(), "need", n, "cap", before, "err", err)
		return nil, errCapacity("%d more bytes needed, %d of %d used (%s)", n, e.buf.Len(), before, err)
	}
	if after := e.buf.Cap(); after != before {
		level.Debug(e.logger).Log("event", "grow", "from", before, "to", after)
	}
	return b, nil
}

// WriteByte writes a raw byte.
func (e *Encoder) WriteByte(v byte) error {
	b, err := e.grow(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

// WriteBytes writes raw bytes.
func (e *Encoder) WriteBytes(v []byte) error {
	if len(v) == 0 {
		return nil
	}
	b, err := e.grow(len(v))
	if err != nil {
		return err
	}
	copy(b, v)
	return nil
}

// WriteU29 writes U29 with no type marker.
func (e *Encoder) WriteU29(v int32) error {
	b, err := e.grow(u29Size(v))
	if err != nil {
		return err
	}
	putU29(b, v)
	return nil
}

// writeLength writes the handle of an inline value: n<<1 | 1
func (e *Encoder) writeLength(n int) error {
	if n > maxLength {
		return errUnsupported("length %d exceeds %d", n, maxLength)
	}
	return e.WriteU29(int32(n<<1 | 1))
}

func (e *Encoder) writeFloat64(v float64) error {
	b, err := e.grow(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return nil
}

func (e *Encoder) WriteUndefined() error {
	return e.WriteByte(TypeUndefined)
}

func (e *Encoder) WriteNull() error {
	return e.WriteByte(TypeNull)
}

func (e *Encoder) WriteBool(v bool) error {
	if v {
		return e.WriteByte(TypeTrue)
	}
	return e.WriteByte(TypeFalse)
}

// WriteInt writes an integer. Values beyond the 29-bit range are written as
// a double.
func (e *Encoder) WriteInt(v int64) error {
	if v < MinInt || v > MaxInt {
		return e.WriteDouble(float64(v))
	}
	// 1 (marker) + up to 4 (U29)
	b, err := e.grow(1 + u29Size(int32(v)))
	if err != nil {
		return err
	}
	b[0] = TypeInteger
	putU29(b[1:], int32(v))
	return nil
}

func (e *Encoder) writeUint(v uint64) error {
	if v > MaxInt {
		return e.WriteDouble(float64(v))
	}
	return e.WriteInt(int64(v))
}

// WriteFloat writes v as a double. AMF3 has no single precision type.
func (e *Encoder) WriteFloat(v float32) error {
	return e.WriteDouble(float64(v))
}

func (e *Encoder) WriteDouble(v float64) error {
	// 1 (marker) + 8 (double)
	b, err := e.grow(1 + 8)
	if err != nil {
		return err
	}
	b[0] = TypeDouble
	binary.BigEndian.PutUint64(b[1:], math.Float64bits(v))
	return nil
}

// WriteString writes a tagged string.
func (e *Encoder) WriteString(v string) error {
	if err := e.WriteByte(TypeString); err != nil {
		return err
	}
	return e.writeUTF8(v)
}

// WriteKey writes a string with no type marker.
func (e *Encoder) WriteKey(key string) error {
	return e.writeUTF8(key)
}

// writeUTF8 writes the string handle. The empty string is always written
// inline and never gets into the string table.
func (e *Encoder) writeUTF8(v string) error {
	if v == "" {
		return e.WriteByte(EmptyString)
	}
	if idx, found := e.strings[v]; found {
		return e.WriteU29(int32(idx << 1))
	}
	e.strings[v] = len(e.strings)

	if err := e.writeLength(len(v)); err != nil {
		return err
	}
	b, err := e.grow(len(v))
	if err != nil {
		return err
	}
	copy(b, v)
	return nil
}

func timeToMillis(t time.Time) float64 {
	return float64(t.Unix())*1000 + float64(t.Nanosecond())/1e6
}

// WriteDate writes a tagged date (milliseconds since epoch, UTC).
func (e *Encoder) WriteDate(v time.Time) error {
	if err := e.WriteByte(TypeDate); err != nil {
		return err
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}
	// no length for dates, just the inline flag
	if err := e.WriteByte(0x01); err != nil {
		return err
	}
	return e.writeFloat64(timeToMillis(v))
}

func (e *Encoder) writeXML(marker byte, text string, v Value) error {
	if err := e.WriteByte(marker); err != nil {
		return err
	}
	if text == "" {
		return e.WriteByte(EmptyString)
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}
	if err := e.writeLength(len(text)); err != nil {
		return err
	}
	b, err := e.grow(len(text))
	if err != nil {
		return err
	}
	copy(b, text)
	return nil
}

func (e *Encoder) writeByteArray(v []byte) error {
	if err := e.WriteByte(TypeByteArray); err != nil {
		return err
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}
	if err := e.writeLength(len(v)); err != nil {
		return err
	}
	return e.WriteBytes(v)
}

func (e *Encoder) writeArray(v Array) error {
	if err := e.WriteByte(TypeArray); err != nil {
		return err
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}
	if err := e.writeLength(len(v)); err != nil {
		return err
	}
	// no named keys
	if err := e.WriteByte(EmptyString); err != nil {
		return err
	}
	for i := range v {
		if err := e.WriteValue(v[i]); err != nil {
			return errors.Wrapf(err, "array element %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeAssocArray(v *AssocArray) error {
	if err := e.WriteByte(TypeArray); err != nil {
		return err
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}
	// no dense part
	if err := e.WriteByte(0x01); err != nil {
		return err
	}
	var err error
	v.Range(func(key string, value Value) bool {
		err = e.writePair(key, value)
		return err == nil
	})
	if err != nil {
		return err
	}
	return e.WriteByte(EmptyString)
}

func (e *Encoder) writePair(key string, value Value) error {
	if key == "" {
		return errUnsupported("empty key can not be encoded")
	}
	if err := e.writeUTF8(key); err != nil {
		return err
	}
	if err := e.WriteValue(value); err != nil {
		return errors.Wrapf(err, "key %q", key)
	}
	return nil
}

func (e *Encoder) writeRecord(v *Record) error {
	trait := v.Trait
	if trait == nil {
		trait = &Trait{Name: v.Type, Dynamic: true}
	} else if trait.Name != v.Type {
		t := *trait
		t.Name = v.Type
		trait = &t
	}
	if trait.Externalizable {
		return errUnsupported("externalizable class %q has no default encoding", trait.Name)
	}

	if err := e.WriteByte(TypeObject); err != nil {
		return err
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}

	// traits are always written inline
	if err := e.WriteU29(trait.handle()); err != nil {
		return err
	}
	if err := e.writeUTF8(trait.Name); err != nil {
		return err
	}
	for _, member := range trait.Members {
		if err := e.writeUTF8(member); err != nil {
			return err
		}
	}

	// a dynamic trait carries the member names only, all the values
	// go to the key/value stream
	if trait.Dynamic {
		var err error
		v.Range(func(key string, value Value) bool {
			err = e.writePair(key, value)
			return err == nil
		})
		if err != nil {
			return err
		}
		return e.WriteByte(EmptyString)
	}

	sealed := make(map[string]bool, len(trait.Members))
	for _, member := range trait.Members {
		sealed[member] = true
		value, found := v.Get(member)
		if found == false {
			value = Undefined{}
		}
		if err := e.WriteValue(value); err != nil {
			return errors.Wrapf(err, "member %q of %q", member, trait.Name)
		}
	}

	var err error
	v.Range(func(key string, value Value) bool {
		if sealed[key] {
			return true
		}
		err = errUnsupported("%q is not a member of sealed class %q", key, trait.Name)
		return false
	})
	return err
}

// writeDynamicHeader writes the trait of a dynamic anonymous object
func (e *Encoder) writeDynamicHeader() error {
	b, err := e.grow(2)
	if err != nil {
		return err
	}
	b[0] = 0x0b // inline object, inline trait, dynamic, no members
	b[1] = EmptyString
	return nil
}

func (e *Encoder) writeReflect(rv reflect.Value, v Value) error {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return e.WriteNull()
		}
		if rv.Elem().Kind() == reflect.Struct {
			return e.writeStruct(rv, v)
		}
		return e.WriteValue(rv.Elem().Interface())

	case reflect.Interface:
		if rv.IsNil() {
			return e.WriteNull()
		}
		return e.WriteValue(rv.Elem().Interface())

	case reflect.Struct:
		return e.writeStruct(rv, v)

	case reflect.Map:
		if rv.IsNil() {
			return e.WriteNull()
		}
		if rv.Type().Key().Kind() != reflect.String {
			return errUnsupported("map with %s keys", rv.Type().Key())
		}
		return e.writeMap(rv, v)

	case reflect.Slice:
		if rv.IsNil() {
			return e.WriteNull()
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return e.writeByteArray(rv.Bytes())
		}
		return e.writeSlice(rv, v)

	case reflect.Array:
		return e.writeSlice(rv, v)

	// named basic types
	case reflect.Bool:
		return e.WriteBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.WriteInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return e.writeUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return e.WriteDouble(rv.Float())
	case reflect.String:
		return e.WriteString(rv.String())
	}

	return errUnsupported("can not encode %s", rv.Type())
}

func (e *Encoder) writeSlice(rv reflect.Value, v Value) error {
	if err := e.WriteByte(TypeArray); err != nil {
		return err
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}
	n := rv.Len()
	if err := e.writeLength(n); err != nil {
		return err
	}
	if err := e.WriteByte(EmptyString); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := e.WriteValue(rv.Index(i).Interface()); err != nil {
			return errors.Wrapf(err, "array element %d", i)
		}
	}
	return nil
}

// writeMap writes a map as a dynamic anonymous object. Keys are sorted to
// keep the output stable.
func (e *Encoder) writeMap(rv reflect.Value, v Value) error {
	if err := e.WriteByte(TypeObject); err != nil {
		return err
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}
	if err := e.writeDynamicHeader(); err != nil {
		return err
	}

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	for _, key := range keys {
		if err := e.writePair(key.String(), rv.MapIndex(key).Interface()); err != nil {
			return err
		}
	}
	return e.WriteByte(EmptyString)
}

// writeStruct writes the fields given by the FieldEnumerator as a dynamic
// anonymous object.
func (e *Encoder) writeStruct(rv reflect.Value, v Value) error {
	if err := e.WriteByte(TypeObject); err != nil {
		return err
	}
	if found, err := e.WriteReference(v); found || err != nil {
		return err
	}

	fields, err := e.fields(rv)
	if err != nil {
		return err
	}

	if err := e.writeDynamicHeader(); err != nil {
		return err
	}
	for _, f := range fields {
		if err := e.writePair(f.Name, f.Value); err != nil {
			return errors.Wrapf(err, "%s", rv.Type())
		}
	}
	return e.WriteByte(EmptyString)
}

// Encode encodes v into a new byte slice.
func Encode(v Value) ([]byte, error) {
	e := NewEncoderWithOptions(EncodeOptions{})
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	data := make([]byte, e.Len())
	copy(data, e.Bytes())
	return data, nil
}
