package transcode

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/kylelemons/godebug/diff"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/ergo-services/amf3/amf3"
)

func sample() *amf3.Record {
	record := amf3.NewRecord("Pt")
	record.Set("x", int32(1))
	record.Set("f", 1.5)
	record.Set("two", 2.0)
	record.Set("s", `a"b`)
	record.Set("d", time.UnixMilli(1e12).UTC())
	record.Set("b", []byte{1, 2, 3})
	record.Set("u", amf3.Undefined{})
	record.Set("xml", amf3.XML("<a/>"))
	record.Set("arr", amf3.Array{nil, true})
	record.Set("empty", amf3.Array{})
	record.Set("obj", amf3.NewRecord(""))
	return record
}

func TestJSON(t *testing.T) {
	var out bytes.Buffer
	err := JSON(&out, sample(), Options{Compact: true})
	require.NoError(t, err)

	expected := `{"$type":"Pt","x":1,"f":1.5,"two":2.0,"s":"a\"b",` +
		`"d":{"$date":"2001-09-09T01:46:40.000Z"},"b":{"$bytes":"AQID"},` +
		`"u":{"$undefined":true},"xml":{"$xml":"<a/>"},` +
		`"arr":[null,true],"empty":[],"obj":{}}` + "\n"
	if d := diff.Diff(expected, out.String()); d != "" {
		t.Fatalf("diff:\n%s", d)
	}
}

func TestJSONRoundtrip(t *testing.T) {
	r := require.New(t)

	for _, opts := range []Options{{Compact: true}, {}} {
		var out bytes.Buffer
		r.NoError(JSON(&out, sample(), opts))

		values, err := FromJSON(out.Bytes())
		r.NoError(err)
		r.Len(values, 1)
		r.Equal(sample(), values[0])

		// and once more through AMF3
		data, err := amf3.Encode(values[0])
		r.NoError(err)
		decoded, err := amf3.Decode(data)
		r.NoError(err)

		var again bytes.Buffer
		r.NoError(JSON(&again, decoded, opts))
		r.Equal(out.String(), again.String())
	}
}

func TestJSONSpecialDoubles(t *testing.T) {
	r := require.New(t)

	var out bytes.Buffer
	r.NoError(JSON(&out, amf3.Array{math.NaN(), math.Inf(1), math.Inf(-1)}, Options{Compact: true}))
	r.Equal(`[{"$double":"NaN"},{"$double":"Infinity"},{"$double":"-Infinity"}]`+"\n", out.String())

	values, err := FromJSON(out.Bytes())
	r.NoError(err)
	array := values[0].(amf3.Array)
	r.True(math.IsNaN(array[0].(float64)))
	r.True(math.IsInf(array[1].(float64), 1))
	r.True(math.IsInf(array[2].(float64), -1))
}

func TestJSONCycle(t *testing.T) {
	record := amf3.NewRecord("")
	record.Set("self", record)
	err := JSON(&bytes.Buffer{}, record, Options{})
	require.True(t, errors.Is(err, ErrCycle))

	// shared but not cyclic
	shared := amf3.Array{int32(1)}
	var out bytes.Buffer
	require.NoError(t, JSON(&out, amf3.Array{shared, shared}, Options{Compact: true}))
	require.Equal(t, "[[1],[1]]\n", out.String())
}

func TestFromJSON(t *testing.T) {
	r := require.New(t)

	values, err := FromJSON([]byte(` 1 2147483648 -5 "s" null [] {"$type":"T","a":{"$xmldoc":"<x/>"}} `))
	r.NoError(err)
	r.Len(values, 7)
	r.Equal(int32(1), values[0])
	r.Equal(float64(2147483648), values[1])
	r.Equal(int32(-5), values[2])
	r.Equal("s", values[3])
	r.Nil(values[4])
	r.Equal(amf3.Array{}, values[5])

	record := values[6].(*amf3.Record)
	r.Equal("T", record.Type)
	a, _ := record.Get("a")
	r.Equal(amf3.XMLDocument("<x/>"), a)

	values, err = FromJSON([]byte("  \n"))
	r.NoError(err)
	r.Empty(values)

	for _, bad := range []string{`{"a":`, `[1,`, `x`, `{"$bytes":"***"}`, `{"$date":1}`, `{"$double":"big"}`} {
		_, err := FromJSON([]byte(bad))
		r.Error(err, bad)
	}
}
