package amf3

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

const maxDateMillis = 8.64e15

// DefaultMaxDepth is the default nesting limit of arrays and objects.
const DefaultMaxDepth = 512

// DecodeOptions
type DecodeOptions struct {
	// MaxDepth limits the nesting of arrays and objects. Deeper data is
	// malformed. Default is DefaultMaxDepth.
	MaxDepth int
	Logger   log.Logger
}

// Decoder reads AMF3 values from a byte region. Every call of Decode starts
// a new session: the string, object and trait tables are cleared, so
// references never cross top-level values.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	data  []byte
	start int
	pos   int
	end   int

	strings []string
	objects []Value
	traits  []*Trait

	depth    int
	maxDepth int

	logger log.Logger
}

// NewDecoder creates a decoder over data[offset:offset+size].
func NewDecoder(data []byte, offset, size int) *Decoder {
	return NewDecoderWithOptions(data, offset, size, DecodeOptions{})
}

// NewDecoderBytes creates a decoder over the whole data.
func NewDecoderBytes(data []byte) *Decoder {
	return NewDecoder(data, 0, len(data))
}

// NewDecoderWithOptions
func NewDecoderWithOptions(data []byte, offset, size int, options DecodeOptions) *Decoder {
	if offset < 0 {
		offset = 0
	}
	if offset > len(data) {
		offset = len(data)
	}
	end := offset + size
	if size < 0 || end > len(data) {
		end = len(data)
	}

	logger := options.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	maxDepth := options.MaxDepth
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}

	return &Decoder{
		data:     data,
		start:    offset,
		pos:      offset,
		end:      end,
		strings:  make([]string, 0, 5),
		objects:  make([]Value, 0, 3),
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Offset returns the start of the region.
func (d *Decoder) Offset() int {
	return d.start
}

// Consumed returns the number of bytes read so far.
func (d *Decoder) Consumed() int {
	return d.pos - d.start
}

// Remaining returns the number of bytes left to read.
func (d *Decoder) Remaining() int {
	return d.end - d.pos
}

// Capacity returns the size of the region.
func (d *Decoder) Capacity() int {
	return d.end - d.start
}

// More returns true if there is data left to decode.
func (d *Decoder) More() bool {
	return d.pos < d.end
}

// Decode reads the next top-level value.
func (d *Decoder) Decode() (Value, error) {
	d.strings = d.strings[:0]
	d.objects = d.objects[:0]
	d.traits = d.traits[:0]
	d.depth = 0

	start := d.pos
	v, err := d.readValue()
	if err != nil {
		level.Debug(d.logger).Log("event", "decode failed", "offset", start-d.start, "pos", d.pos-d.start, "err", err)
		return nil, err
	}
	return v, nil
}

// Skip moves the cursor forward by n bytes. Returns false if there is not
// enough data.
func (d *Decoder) Skip(n int) bool {
	if n < 0 || n > d.Remaining() {
		return false
	}
	d.pos += n
	return true
}

// ReadByte reads a single raw byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= d.end {
		return 0, errMalformed("unexpected end of data at %d", d.pos-d.start)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

// ReadBool reads a tagged boolean.
func (d *Decoder) ReadBool() (bool, error) {
	t, err := d.peek()
	if err != nil {
		return false, err
	}
	switch t {
	case TypeFalse:
		d.pos++
		return false, nil
	case TypeTrue:
		d.pos++
		return true, nil
	}
	return false, errMalformed("can not convert %s to bool", TagName(t))
}

// ReadInt reads a tagged 29-bit integer.
func (d *Decoder) ReadInt() (int32, error) {
	if err := d.expect(TypeInteger); err != nil {
		return 0, err
	}
	return d.readHandle()
}

// ReadDouble reads a tagged double.
func (d *Decoder) ReadDouble() (float64, error) {
	if err := d.expect(TypeDouble); err != nil {
		return 0, err
	}
	return d.readDouble()
}

// ReadString reads a tagged string.
func (d *Decoder) ReadString() (string, error) {
	if err := d.expect(TypeString); err != nil {
		return "", err
	}
	return d.readUTF8()
}

// ReadDate reads a tagged date.
func (d *Decoder) ReadDate() (time.Time, error) {
	if err := d.expect(TypeDate); err != nil {
		return time.Time{}, err
	}
	v, err := d.readDate()
	if err != nil {
		return time.Time{}, err
	}
	t, ok := v.(time.Time)
	if ok == false {
		return time.Time{}, errMalformed("date reference points to %s", KindOf(v))
	}
	return t, nil
}

// ReadArray reads a tagged array. The result is either Array or *AssocArray.
func (d *Decoder) ReadArray() (Value, error) {
	if err := d.expect(TypeArray); err != nil {
		return nil, err
	}
	return d.readArray()
}

// ReadObject reads a tagged object.
func (d *Decoder) ReadObject() (Value, error) {
	if err := d.expect(TypeObject); err != nil {
		return nil, err
	}
	return d.readObject()
}

// ReadXML reads XML of both kinds and returns the text.
func (d *Decoder) ReadXML() (string, error) {
	t, err := d.peek()
	if err != nil {
		return "", err
	}
	if t != TypeXML && t != TypeXMLDoc {
		return "", errMalformed("can not convert %s to xml", TagName(t))
	}
	d.pos++
	v, err := d.readXML(t)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case XML:
		return string(x), nil
	case XMLDocument:
		return string(x), nil
	}
	return "", errMalformed("xml reference points to %s", KindOf(v))
}

// ReadByteArray reads a tagged byte array.
func (d *Decoder) ReadByteArray() ([]byte, error) {
	if err := d.expect(TypeByteArray); err != nil {
		return nil, err
	}
	v, err := d.readByteArray()
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if ok == false {
		return nil, errMalformed("byte array reference points to %s", KindOf(v))
	}
	return b, nil
}

func (d *Decoder) peek() (byte, error) {
	if d.pos >= d.end {
		return 0, errMalformed("unexpected end of data at %d", d.pos-d.start)
	}
	return d.data[d.pos], nil
}

func (d *Decoder) expect(t byte) error {
	b, err := d.peek()
	if err != nil {
		return err
	}
	if b != t {
		return errMalformed("can not convert %s to %s", TagName(b), TagName(t))
	}
	d.pos++
	return nil
}

func (d *Decoder) readValue() (Value, error) {
	t, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	// the AMF3 switch marker carries no value
	for t == TypeAMF3 {
		if t, err = d.ReadByte(); err != nil {
			return nil, err
		}
	}

	switch t {
	case TypeUndefined:
		return Undefined{}, nil
	case TypeNull:
		return nil, nil
	case TypeFalse:
		return false, nil
	case TypeTrue:
		return true, nil
	case TypeInteger:
		return d.readHandle()
	case TypeDouble:
		return d.readDouble()
	case TypeString:
		return d.readUTF8()
	case TypeDate:
		return d.readDate()
	case TypeArray:
		return d.readArray()
	case TypeObject:
		return d.readObject()
	case TypeXML, TypeXMLDoc:
		return d.readXML(t)
	case TypeByteArray:
		return d.readByteArray()
	}

	return nil, errMalformed("unknown type %d at %d", t, d.pos-1-d.start)
}

// nested reads a value inside an array or object.
func (d *Decoder) nested() (Value, error) {
	if d.depth >= d.maxDepth {
		return nil, errMalformed("nesting is deeper than %d at %d", d.maxDepth, d.pos-d.start)
	}
	d.depth++
	v, err := d.readValue()
	d.depth--
	return v, err
}

// readHandle reads U29 (integers, ref-or-length handles).
func (d *Decoder) readHandle() (int32, error) {
	v, n, err := readU29(d.data[d.pos:d.end])
	if err != nil {
		return 0, err
	}
	d.pos += n
	return v, nil
}

// readLength returns the length of an inline value. Since every unit
// (byte, element, member) takes at least one byte, a length exceeding the
// rest of the data is malformed.
func (d *Decoder) readLength(handle int32) (int, error) {
	n := handleValue(handle)
	if n > d.Remaining() {
		return 0, errMalformed("length %d exceeds the remaining %d bytes", n, d.Remaining())
	}
	return n, nil
}

func (d *Decoder) readDouble() (float64, error) {
	if d.Remaining() < 8 {
		return 0, errMalformed("truncated double")
	}
	bits := binary.BigEndian.Uint64(d.data[d.pos : d.pos+8])
	d.pos += 8
	return math.Float64frombits(bits), nil
}

func (d *Decoder) readBytes(n int) []byte {
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

// readUTF8 reads a string without the type marker (values, keys, class
// and member names).
func (d *Decoder) readUTF8() (string, error) {
	handle, err := d.readHandle()
	if err != nil {
		return "", err
	}
	if isInline(handle) == false {
		idx := handleValue(handle)
		if idx >= len(d.strings) {
			return "", errMalformed("string reference %d out of range (%d)", idx, len(d.strings))
		}
		return d.strings[idx], nil
	}

	n, err := d.readLength(handle)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b := d.readBytes(n)
	if utf8.Valid(b) == false {
		return "", errMalformed("invalid UTF-8 string")
	}
	s := string(b)
	d.strings = append(d.strings, s)
	return s, nil
}

func (d *Decoder) objectRef(handle int32) (Value, error) {
	idx := handleValue(handle)
	if idx >= len(d.objects) {
		return nil, errMalformed("object reference %d out of range (%d)", idx, len(d.objects))
	}
	return d.objects[idx], nil
}

func (d *Decoder) readDate() (Value, error) {
	handle, err := d.readHandle()
	if err != nil {
		return nil, err
	}
	if isInline(handle) == false {
		return d.objectRef(handle)
	}

	ms, err := d.readDouble()
	if err != nil {
		return nil, err
	}
	// ActionScript dates span ±1e8 days around the epoch
	if math.IsNaN(ms) || math.Abs(ms) > maxDateMillis {
		return nil, errMalformed("invalid date %v", ms)
	}
	date := time.UnixMilli(int64(math.Round(ms))).UTC()
	d.objects = append(d.objects, date)
	return date, nil
}

// readArray returns Array if there are no named keys, *AssocArray otherwise.
func (d *Decoder) readArray() (Value, error) {
	handle, err := d.readHandle()
	if err != nil {
		return nil, err
	}
	if isInline(handle) == false {
		return d.objectRef(handle)
	}

	length, err := d.readLength(handle)
	if err != nil {
		return nil, err
	}

	// the slot is taken before the content is read so nested values
	// are able to refer to this array
	idx := len(d.objects)
	d.objects = append(d.objects, nil)

	var assoc *AssocArray
	for {
		key, err := d.readUTF8()
		if err != nil {
			return nil, errors.Wrap(err, "array key")
		}
		if key == "" {
			break
		}
		if assoc == nil {
			assoc = NewAssocArray()
			d.objects[idx] = assoc
		}
		value, err := d.nested()
		if err != nil {
			return nil, errors.Wrapf(err, "array key %q", key)
		}
		assoc.Set(key, value)
	}

	if assoc == nil {
		array := make(Array, length)
		d.objects[idx] = array
		for i := range array {
			value, err := d.nested()
			if err != nil {
				return nil, errors.Wrapf(err, "array element %d", i)
			}
			array[i] = value
		}
		return array, nil
	}

	for i := 0; i < length; i++ {
		value, err := d.nested()
		if err != nil {
			return nil, errors.Wrapf(err, "array element %d", i)
		}
		assoc.Set(strconv.Itoa(i), value)
	}
	return assoc, nil
}

func (d *Decoder) readObject() (Value, error) {
	handle, err := d.readHandle()
	if err != nil {
		return nil, err
	}
	if isInline(handle) == false {
		return d.objectRef(handle)
	}

	trait, err := d.readTrait(handleValue(handle))
	if err != nil {
		return nil, err
	}
	if trait.Externalizable {
		return nil, errUnsupported("externalizable class %q", trait.Name)
	}

	record := &Record{
		Type:  trait.Name,
		Trait: trait,
	}
	d.objects = append(d.objects, record)

	if trait.Dynamic == false {
		for _, member := range trait.Members {
			value, err := d.nested()
			if err != nil {
				return nil, errors.Wrapf(err, "member %q of %q", member, trait.Name)
			}
			record.Set(member, value)
		}
		return record, nil
	}

	// the member names of a dynamic trait are not followed by positional
	// values, the object is a key/value stream only
	for {
		key, err := d.readUTF8()
		if err != nil {
			return nil, errors.Wrapf(err, "dynamic key of %q", trait.Name)
		}
		if key == "" {
			return record, nil
		}
		value, err := d.nested()
		if err != nil {
			return nil, errors.Wrapf(err, "dynamic member %q of %q", key, trait.Name)
		}
		record.Set(key, value)
	}
}

func (d *Decoder) readXML(t byte) (Value, error) {
	handle, err := d.readHandle()
	if err != nil {
		return nil, err
	}
	if isInline(handle) == false {
		return d.objectRef(handle)
	}

	n, err := d.readLength(handle)
	if err != nil {
		return nil, err
	}

	var text string
	if n > 0 {
		b := d.readBytes(n)
		if utf8.Valid(b) == false {
			return nil, errMalformed("invalid UTF-8 xml")
		}
		text = string(b)
	}

	var v Value
	if t == TypeXMLDoc {
		v = XMLDocument(text)
	} else {
		v = XML(text)
	}
	// empty xml is never written as a reference
	if n > 0 {
		d.objects = append(d.objects, v)
	}
	return v, nil
}

func (d *Decoder) readByteArray() (Value, error) {
	handle, err := d.readHandle()
	if err != nil {
		return nil, err
	}
	if isInline(handle) == false {
		return d.objectRef(handle)
	}

	n, err := d.readLength(handle)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, d.readBytes(n))
	d.objects = append(d.objects, b)
	return b, nil
}

// Decode decodes the first value of data.
func Decode(data []byte) (Value, error) {
	return NewDecoderBytes(data).Decode()
}

// DecodeAll decodes all the top-level values of data.
func DecodeAll(data []byte) ([]Value, error) {
	var values []Value
	d := NewDecoderBytes(data)
	for d.More() {
		v, err := d.Decode()
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", len(values))
		}
		values = append(values, v)
	}
	return values, nil
}
