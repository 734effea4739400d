// Package transcode renders decoded AMF3 values in text and binary formats
// and reads JSON back into values the amf3 Encoder accepts.
//
// Values with no direct counterpart in the target format are written as a
// single key object holding an annotation:
//
//	{"$bytes": "AQID"}
//	{"$date": "2006-01-02T15:04:05.000Z"}
//	{"$xml": "<a/>"}, {"$xmldoc": "<a/>"}
//	{"$undefined": true}
//	{"$double": "NaN"}
//
// Class names of records are written under the "$type" key.
package transcode

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ergo-services/amf3/amf3"
	"github.com/ergo-services/amf3/lib"
)

// DateLayout is the format of dates (milliseconds, UTC).
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrCycle is returned for values referring to themselves. Shared values
	// are written as many times as they are referenced.
	ErrCycle = errors.New("transcode: cyclic value")

	annotations = lib.NewBiMap(map[amf3.Kind]string{
		amf3.KindUndefined:   "$undefined",
		amf3.KindDouble:      "$double",
		amf3.KindDate:        "$date",
		amf3.KindByteArray:   "$bytes",
		amf3.KindXML:         "$xml",
		amf3.KindXMLDocument: "$xmldoc",
	})
)

// Options
type Options struct {
	// Compact disables indentation.
	Compact bool
}

// Annotation returns the key values of the given kind are annotated with.
func Annotation(kind amf3.Kind) (string, bool) {
	return annotations.GetB(kind)
}

func annotation(kind amf3.Kind) string {
	key, _ := annotations.GetB(kind)
	return key
}

// guard tracks the containers being written to detect cycles
type guard map[interface{}]bool

func (g guard) enter(v amf3.Value) (interface{}, error) {
	var key interface{}
	switch x := v.(type) {
	case *amf3.Record:
		key = x
	case *amf3.AssocArray:
		key = x
	case amf3.Array:
		if len(x) == 0 {
			return nil, nil
		}
		key = &x[0]
	default:
		return nil, nil
	}
	if g[key] {
		return nil, ErrCycle
	}
	g[key] = true
	return key, nil
}

func (g guard) leave(key interface{}) {
	if key != nil {
		delete(g, key)
	}
}

// formatDouble keeps the fraction mark so the value isn't taken for an
// integer when read back
func formatDouble(f float64) string {
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if strings.ContainsAny(s, ".e") == false {
		s += ".0"
	}
	return s
}

// specialDouble returns the name of NaN and infinities
func specialDouble(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	}
	return "", false
}

func notDecoded(v amf3.Value) error {
	return errors.Errorf("transcode: %T is not a decoded AMF3 value", v)
}
