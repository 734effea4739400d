package transcode

import (
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/ergo-services/amf3/amf3"
)

// cborMode is Core Deterministic Encoding (RFC 8949 4.2) with dates as
// tagged RFC 3339 strings.
var cborMode cbor.EncMode

// undefined simple value
var cborUndefined = cbor.RawMessage{0xf7}

func init() {
	options := cbor.CoreDetEncOptions()
	options.Time = cbor.TimeRFC3339Nano
	options.TimeTag = cbor.EncTagRequired

	mode, err := options.EncMode()
	if err != nil {
		panic("transcode: CBOR encoder initialization failed: " + err.Error())
	}
	cborMode = mode
}

// CBOR encodes v as CBOR. Records and associative arrays become maps with
// sorted keys, byte arrays become byte strings, Undefined becomes the CBOR
// undefined value.
func CBOR(v amf3.Value) ([]byte, error) {
	tree, err := cborTree(v, make(guard))
	if err != nil {
		return nil, err
	}
	return cborMode.Marshal(tree)
}

func cborTree(v amf3.Value, g guard) (interface{}, error) {
	switch x := v.(type) {
	case nil, bool, int32, float64, string, []byte:
		return x, nil
	case time.Time:
		return x.UTC(), nil
	case amf3.Undefined:
		return cborUndefined, nil
	case amf3.XML:
		return map[string]interface{}{annotation(amf3.KindXML): string(x)}, nil
	case amf3.XMLDocument:
		return map[string]interface{}{annotation(amf3.KindXMLDocument): string(x)}, nil

	case amf3.Array:
		key, err := g.enter(x)
		if err != nil {
			return nil, err
		}
		defer g.leave(key)

		list := make([]interface{}, len(x))
		for i := range x {
			if list[i], err = cborTree(x[i], g); err != nil {
				return nil, err
			}
		}
		return list, nil

	case *amf3.AssocArray:
		return cborMap(x, "", &x.Fields, g)
	case *amf3.Record:
		return cborMap(x, x.Type, &x.Fields, g)
	}

	return nil, notDecoded(v)
}

func cborMap(container amf3.Value, typeName string, fields *amf3.Fields, g guard) (interface{}, error) {
	key, err := g.enter(container)
	if err != nil {
		return nil, err
	}
	defer g.leave(key)

	m := make(map[string]interface{}, fields.Len()+1)
	if typeName != "" {
		m[amf3.TypeNameKey] = typeName
	}
	fields.Range(func(k string, v amf3.Value) bool {
		m[k], err = cborTree(v, g)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
