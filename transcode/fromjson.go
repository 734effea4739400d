package transcode

import (
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/ergo-services/amf3/amf3"
)

// FromJSON reads a stream of JSON documents. Objects become anonymous
// dynamic records (the "$type" key sets the class name) with the keys in
// document order, annotated objects become the values they describe.
// Integers fitting int32 become int32, other numbers become float64.
func FromJSON(data []byte) ([]amf3.Value, error) {
	iter := jsoniter.ParseBytes(jsonCompact, data)
	r := jsonReader{iter: iter}

	var values []amf3.Value
	for {
		if iter.WhatIsNext() == jsoniter.InvalidValue {
			if iter.Error == io.EOF {
				return values, nil
			}
			if iter.Error == nil {
				iter.ReportError("FromJSON", "unexpected character")
			}
			return nil, errors.Wrapf(iter.Error, "document %d", len(values))
		}

		v, err := r.read()
		if err == nil && iter.Error != nil && iter.Error != io.EOF {
			err = iter.Error
		}
		if err != nil {
			return nil, errors.Wrapf(err, "document %d", len(values))
		}
		values = append(values, v)
	}
}

type jsonReader struct {
	iter *jsoniter.Iterator
}

func (r *jsonReader) read() (amf3.Value, error) {
	iter := r.iter
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		return nil, nil
	case jsoniter.BoolValue:
		return iter.ReadBool(), nil
	case jsoniter.NumberValue:
		return parseNumber(string(iter.ReadNumber()))
	case jsoniter.StringValue:
		return iter.ReadString(), nil

	case jsoniter.ArrayValue:
		array := amf3.Array{}
		var err error
		iter.ReadArrayCB(func(*jsoniter.Iterator) bool {
			var v amf3.Value
			v, err = r.read()
			array = append(array, v)
			return err == nil
		})
		return array, err

	case jsoniter.ObjectValue:
		return r.readObject()
	}

	if iter.Error != nil {
		return nil, iter.Error
	}
	return nil, errors.New("transcode: unexpected JSON value")
}

func (r *jsonReader) readObject() (amf3.Value, error) {
	record := amf3.NewRecord("")
	var err error
	r.iter.ReadObjectCB(func(_ *jsoniter.Iterator, key string) bool {
		var v amf3.Value
		v, err = r.read()
		if err != nil {
			return false
		}
		if name, ok := v.(string); ok && key == amf3.TypeNameKey {
			record.Type = name
			return true
		}
		record.Set(key, v)
		return true
	})
	if err != nil {
		return nil, err
	}

	if record.Type == "" && record.Len() == 1 {
		return fromAnnotation(record)
	}
	return record, nil
}

func fromAnnotation(record *amf3.Record) (amf3.Value, error) {
	key := record.Keys()[0]
	kind, found := annotations.GetA(key)
	if found == false {
		return record, nil
	}

	v, _ := record.Get(key)
	if kind == amf3.KindUndefined {
		return amf3.Undefined{}, nil
	}
	s, ok := v.(string)
	if ok == false {
		return nil, errors.Errorf("transcode: %s expects a string, got %T", key, v)
	}

	switch kind {
	case amf3.KindByteArray:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "transcode: %s", key)
		}
		return b, nil
	case amf3.KindDate:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, errors.Wrapf(err, "transcode: %s", key)
		}
		return t.UTC(), nil
	case amf3.KindXML:
		return amf3.XML(s), nil
	case amf3.KindXMLDocument:
		return amf3.XMLDocument(s), nil
	case amf3.KindDouble:
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return nil, errors.Errorf("transcode: unknown %s %q", key, s)
	}
	return record, nil
}

func parseNumber(s string) (amf3.Value, error) {
	if strings.ContainsAny(s, ".eE") == false {
		if i, err := strconv.ParseInt(s, 10, 32); err == nil {
			return int32(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "transcode: number %q", s)
	}
	return f, nil
}
