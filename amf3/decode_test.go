package amf3

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func double(marker byte, v float64) []byte {
	b := []byte{marker, 0, 0, 0, 0, 0, 0, 0, 0}
	binary.BigEndian.PutUint64(b[1:], math.Float64bits(v))
	return b
}

func TestDecodeScalars(t *testing.T) {
	cases := []struct {
		name     string
		packet   []byte
		expected Value
	}{
		{"undefined", []byte{TypeUndefined}, Undefined{}},
		{"null", []byte{TypeNull}, nil},
		{"false", []byte{TypeFalse}, false},
		{"true", []byte{TypeTrue}, true},
		{"integer", []byte{TypeInteger, 0x7f}, int32(127)},
		{"negative integer", []byte{TypeInteger, 0xff, 0xff, 0xff, 0xff}, int32(-1)},
		{"double", []byte{TypeDouble, 64, 9, 30, 184, 81, 235, 133, 31}, float64(3.14)},
		{"string", []byte{TypeString, 0x07, 'a', 'b', 'c'}, "abc"},
		{"empty string", []byte{TypeString, EmptyString}, ""},
		{"xml", []byte{TypeXML, 0x07, '<', 'a', '>'}, XML("<a>")},
		{"xml document", []byte{TypeXMLDoc, 0x07, '<', 'a', '>'}, XMLDocument("<a>")},
		{"byte array", []byte{TypeByteArray, 0x07, 1, 2, 3}, []byte{1, 2, 3}},
		{"amf3 switch", []byte{TypeAMF3, TypeInteger, 0x01}, int32(1)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := Decode(c.packet)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(v, c.expected) {
				t.Fatalf("exp %#v got %#v", c.expected, v)
			}
		})
	}
}

func TestDecodeDate(t *testing.T) {
	expected := time.Date(2001, 9, 9, 1, 46, 40, 0, time.UTC)
	packet := double(TypeDate, 1e12)
	// the handle goes between the marker and the value
	packet = append([]byte{TypeDate, 0x01}, packet[1:]...)

	d := NewDecoderBytes(packet)
	v, err := d.ReadDate()
	if err != nil {
		t.Fatal(err)
	}
	if v.Equal(expected) == false || v.Location() != time.UTC {
		t.Fatalf("exp %s got %s", expected, v)
	}
	if d.Consumed() != 10 || d.More() {
		t.Fatal("incorrect position")
	}

	nan := double(TypeDate, math.NaN())
	nan = append([]byte{TypeDate, 0x01}, nan[1:]...)
	if _, err := Decode(nan); errors.Is(err, ErrMalformedInput) == false {
		t.Fatal(err)
	}
}

func TestDecodeStringReference(t *testing.T) {
	packet := []byte{TypeArray, 0x05, EmptyString,
		TypeString, 0x07, 'a', 'b', 'c',
		TypeString, 0x00,
	}
	v, err := Decode(packet)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, Array{"abc", "abc"}) {
		t.Fatalf("got %#v", v)
	}

	// empty strings are never interned, so index 0 is still "abc"
	packet = []byte{TypeArray, 0x07, EmptyString,
		TypeString, EmptyString,
		TypeString, 0x03, 'x',
		TypeString, 0x00,
	}
	v, err = Decode(packet)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, Array{"", "x", "x"}) {
		t.Fatalf("got %#v", v)
	}

	packet = []byte{TypeString, 0x00}
	if _, err := Decode(packet); errors.Is(err, ErrMalformedInput) == false {
		t.Fatal(err)
	}
}

func TestDecodeTablesReset(t *testing.T) {
	packet := []byte{TypeString, 0x03, 'a', TypeString, 0x00}
	d := NewDecoderBytes(packet)
	v, err := d.Decode()
	if err != nil || v != "a" {
		t.Fatal(v, err)
	}
	if _, err := d.Decode(); errors.Is(err, ErrMalformedInput) == false {
		t.Fatal(err)
	}
}

func TestDecodeMixedArray(t *testing.T) {
	packet := []byte{TypeArray, 0x03,
		0x03, 'a', TypeInteger, 0x01,
		EmptyString,
		TypeString, 0x03, 'x',
	}
	v, err := Decode(packet)
	if err != nil {
		t.Fatal(err)
	}
	assoc, ok := v.(*AssocArray)
	if ok == false {
		t.Fatalf("got %#v", v)
	}
	if !reflect.DeepEqual(assoc.Keys(), []string{"a", "0"}) {
		t.Fatal("incorrect keys", assoc.Keys())
	}
	if x, _ := assoc.Get("0"); x != "x" {
		t.Fatal("incorrect value", x)
	}
	if a, _ := assoc.Get("a"); a != int32(1) {
		t.Fatal("incorrect value", a)
	}
}

func TestDecodeArraySelfReference(t *testing.T) {
	// empty xml takes no slot, so the reference points to the array
	packet := []byte{TypeArray, 0x05, EmptyString,
		TypeXML, EmptyString,
		TypeArray, 0x00,
	}
	v, err := Decode(packet)
	if err != nil {
		t.Fatal(err)
	}
	array := v.(Array)
	inner, ok := array[1].(Array)
	if ok == false || len(inner) != 2 || &inner[0] != &array[0] {
		t.Fatal("must refer to itself")
	}
	if array[0] != XML("") {
		t.Fatalf("got %#v", array[0])
	}
}

func TestDecodeDynamicObject(t *testing.T) {
	packet := []byte{TypeObject, 0x0b, EmptyString,
		0x03, 'a', TypeInteger, 0x01,
		EmptyString,
	}
	v, err := Decode(packet)
	if err != nil {
		t.Fatal(err)
	}
	record := v.(*Record)
	if record.Type != "" || record.Trait.Dynamic == false || record.Trait.Anonymous() == false {
		t.Fatal("incorrect trait", record.Trait)
	}
	if a, _ := record.Get("a"); a != int32(1) || record.Len() != 1 {
		t.Fatal("incorrect fields", record.Keys())
	}
}

func TestDecodeDynamicObjectWithMembers(t *testing.T) {
	// member names of a dynamic trait are followed by the key/value stream only
	packet := []byte{TypeObject, 0x1b, EmptyString, 0x03, 'x',
		0x03, 'a', TypeInteger, 0x05,
		EmptyString,
	}
	v, err := Decode(packet)
	if err != nil {
		t.Fatal(err)
	}
	record := v.(*Record)
	if record.Trait.Dynamic == false || !reflect.DeepEqual(record.Trait.Members, []string{"x"}) {
		t.Fatal("incorrect trait", record.Trait)
	}
	if !reflect.DeepEqual(record.Keys(), []string{"a"}) {
		t.Fatal("incorrect fields", record.Keys())
	}
	if a, _ := record.Get("a"); a != int32(5) {
		t.Fatal("incorrect value", a)
	}
}

func TestDecodeSealedObject(t *testing.T) {
	packet := []byte{TypeArray, 0x05, EmptyString,
		TypeObject, 0x13, 0x05, 'P', 't', 0x03, 'x', TypeInteger, 0x01,
		// trait reference 0
		TypeObject, 0x01, TypeInteger, 0x02,
	}
	v, err := Decode(packet)
	if err != nil {
		t.Fatal(err)
	}
	array := v.(Array)
	first := array[0].(*Record)
	second := array[1].(*Record)
	if first.Type != "Pt" || second.Type != "Pt" || first.Trait != second.Trait {
		t.Fatal("incorrect trait")
	}
	if !reflect.DeepEqual(first.Trait.Members, []string{"x"}) || first.Trait.Dynamic {
		t.Fatal("incorrect trait", first.Trait)
	}
	if x, _ := first.Get("x"); x != int32(1) {
		t.Fatal("incorrect value", x)
	}
	if x, _ := second.Get("x"); x != int32(2) {
		t.Fatal("incorrect value", x)
	}
}

func TestDecodeObjectSelfReference(t *testing.T) {
	packet := []byte{TypeObject, 0x0b, EmptyString,
		0x09, 's', 'e', 'l', 'f', TypeObject, 0x00,
		EmptyString,
	}
	v, err := Decode(packet)
	if err != nil {
		t.Fatal(err)
	}
	record := v.(*Record)
	self, _ := record.Get("self")
	if self != record {
		t.Fatal("must refer to itself")
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name   string
		packet []byte
		kind   error
	}{
		{"empty", []byte{}, ErrMalformedInput},
		{"unknown marker", []byte{0x0d}, ErrMalformedInput},
		{"truncated integer", []byte{TypeInteger, 0x81}, ErrMalformedInput},
		{"truncated double", []byte{TypeDouble, 64, 9, 30}, ErrMalformedInput},
		{"long string", []byte{TypeString, 0x0b, 'a'}, ErrMalformedInput},
		{"invalid utf-8", []byte{TypeString, 0x03, 0xff}, ErrMalformedInput},
		{"long array", []byte{TypeArray, 0x21, EmptyString}, ErrMalformedInput},
		{"array reference", []byte{TypeArray, 0x02}, ErrMalformedInput},
		{"trait reference", []byte{TypeObject, 0x05}, ErrMalformedInput},
		{"unterminated object", []byte{TypeObject, 0x0b, EmptyString, 0x03, 'a', TypeNull}, ErrMalformedInput},
		{"externalizable", []byte{TypeObject, 0x07, 0x05, 'E', 'x'}, ErrUnsupportedFeature},
		{"date out of range", append([]byte{TypeDate, 0x01}, double(TypeDate, 1e300)[1:]...), ErrMalformedInput},
		{"infinite date", append([]byte{TypeDate, 0x01}, double(TypeDate, math.Inf(-1))[1:]...), ErrMalformedInput},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode(c.packet)
			if errors.Is(err, c.kind) == false {
				t.Fatal(err)
			}
		})
	}
}

func TestDecodeTyped(t *testing.T) {
	packet := []byte{
		TypeTrue,
		TypeInteger, 0x05,
		TypeXMLDoc, 0x03, 'x',
		TypeByteArray, 0x03, 0xaa,
	}
	d := NewDecoderBytes(packet)

	if _, err := d.ReadInt(); errors.Is(err, ErrMalformedInput) == false {
		t.Fatal(err)
	}
	// the cursor stays in place on the type mismatch
	if b, err := d.ReadBool(); err != nil || b == false {
		t.Fatal(b, err)
	}
	if i, err := d.ReadInt(); err != nil || i != 5 {
		t.Fatal(i, err)
	}
	if s, err := d.ReadXML(); err != nil || s != "x" {
		t.Fatal(s, err)
	}
	if b, err := d.ReadByteArray(); err != nil || !reflect.DeepEqual(b, []byte{0xaa}) {
		t.Fatal(b, err)
	}
	if _, err := d.ReadByte(); errors.Is(err, ErrMalformedInput) == false {
		t.Fatal(err)
	}
}

func TestDecoderRegion(t *testing.T) {
	packet := []byte{0xff, 0xff, TypeInteger, 0x01, TypeInteger, 0x02, 0xff}
	d := NewDecoder(packet, 2, 4)
	if d.Offset() != 2 || d.Capacity() != 4 || d.Remaining() != 4 {
		t.Fatal("incorrect region")
	}

	values := []Value{}
	for d.More() {
		v, err := d.Decode()
		if err != nil {
			t.Fatal(err)
		}
		values = append(values, v)
	}
	if !reflect.DeepEqual(values, []Value{int32(1), int32(2)}) {
		t.Fatalf("got %#v", values)
	}
	if d.Consumed() != 4 {
		t.Fatal("incorrect position")
	}

	d = NewDecoder(packet, 0, 3)
	if d.Skip(4) {
		t.Fatal("must not skip beyond the region")
	}
	if d.Skip(3) == false || d.More() {
		t.Fatal("must skip to the end")
	}
}

func TestDecodeAll(t *testing.T) {
	packet := []byte{TypeString, 0x03, 'a', TypeString, 0x03, 'a', TypeNull}
	values, err := DecodeAll(packet)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(values, []Value{"a", "a", nil}) {
		t.Fatalf("got %#v", values)
	}

	_, err = DecodeAll(append(packet, 0x0d))
	if errors.Is(err, ErrMalformedInput) == false {
		t.Fatal(err)
	}
}

func TestDecodeDepth(t *testing.T) {
	// switch markers do not nest
	packet := bytes.Repeat([]byte{TypeAMF3}, 100000)
	packet = append(packet, TypeNull)
	v, err := Decode(packet)
	if err != nil || v != nil {
		t.Fatal(v, err)
	}

	nested := func(n int) []byte {
		packet := []byte{}
		for i := 0; i < n; i++ {
			packet = append(packet, TypeArray, 0x03, EmptyString)
		}
		return append(packet, TypeNull)
	}

	d := NewDecoderWithOptions(nested(3), 0, -1, DecodeOptions{MaxDepth: 3})
	if _, err := d.Decode(); err != nil {
		t.Fatal(err)
	}
	d = NewDecoderWithOptions(nested(4), 0, -1, DecodeOptions{MaxDepth: 3})
	if _, err := d.Decode(); errors.Is(err, ErrMalformedInput) == false {
		t.Fatal(err)
	}

	if _, err := Decode(nested(1000000)); errors.Is(err, ErrMalformedInput) == false {
		t.Fatal(err)
	}
}
