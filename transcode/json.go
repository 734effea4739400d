package transcode

import (
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ergo-services/amf3/amf3"
)

var (
	jsonIndented = jsoniter.Config{IndentionStep: 2}.Froze()
	jsonCompact  = jsoniter.Config{}.Froze()
)

type jsonWriter struct {
	stream *jsoniter.Stream
	guard  guard
}

// JSON writes v as a JSON document followed by a newline. Keys keep the
// order of the record fields.
func JSON(w io.Writer, v amf3.Value, opts Options) error {
	config := jsonIndented
	if opts.Compact {
		config = jsonCompact
	}
	jw := jsonWriter{
		stream: jsoniter.NewStream(config, w, 512),
		guard:  make(guard),
	}
	if err := jw.write(v); err != nil {
		return err
	}
	jw.stream.WriteRaw("\n")
	return jw.stream.Flush()
}

func (jw *jsonWriter) write(v amf3.Value) error {
	s := jw.stream
	switch x := v.(type) {
	case nil:
		s.WriteNil()
	case bool:
		s.WriteBool(x)
	case int32:
		s.WriteInt32(x)
	case float64:
		if name, special := specialDouble(x); special {
			jw.annotated(amf3.KindDouble, func() { s.WriteString(name) })
			break
		}
		s.WriteRaw(formatDouble(x))
	case string:
		s.WriteString(x)

	case amf3.Undefined:
		jw.annotated(amf3.KindUndefined, s.WriteTrue)
	case time.Time:
		jw.annotated(amf3.KindDate, func() { s.WriteString(x.UTC().Format(DateLayout)) })
	case []byte:
		// jsoniter writes []byte as standard base64
		jw.annotated(amf3.KindByteArray, func() { s.WriteVal(x) })
	case amf3.XML:
		jw.annotated(amf3.KindXML, func() { s.WriteString(string(x)) })
	case amf3.XMLDocument:
		jw.annotated(amf3.KindXMLDocument, func() { s.WriteString(string(x)) })

	case amf3.Array:
		key, err := jw.guard.enter(x)
		if err != nil {
			return err
		}
		defer jw.guard.leave(key)

		if len(x) == 0 {
			s.WriteEmptyArray()
			break
		}
		s.WriteArrayStart()
		for i := range x {
			if i > 0 {
				s.WriteMore()
			}
			if err := jw.write(x[i]); err != nil {
				return err
			}
		}
		s.WriteArrayEnd()

	case *amf3.AssocArray:
		return jw.writeFields(x, "", &x.Fields)
	case *amf3.Record:
		return jw.writeFields(x, x.Type, &x.Fields)

	default:
		return notDecoded(v)
	}
	return s.Error
}

func (jw *jsonWriter) annotated(kind amf3.Kind, value func()) {
	jw.stream.WriteObjectStart()
	jw.stream.WriteObjectField(annotation(kind))
	value()
	jw.stream.WriteObjectEnd()
}

func (jw *jsonWriter) writeFields(container amf3.Value, typeName string, fields *amf3.Fields) error {
	key, err := jw.guard.enter(container)
	if err != nil {
		return err
	}
	defer jw.guard.leave(key)

	s := jw.stream
	if typeName == "" && fields.Len() == 0 {
		s.WriteEmptyObject()
		return s.Error
	}

	s.WriteObjectStart()
	more := false
	if typeName != "" {
		s.WriteObjectField(amf3.TypeNameKey)
		s.WriteString(typeName)
		more = true
	}
	fields.Range(func(k string, v amf3.Value) bool {
		if more {
			s.WriteMore()
		}
		more = true
		s.WriteObjectField(k)
		err = jw.write(v)
		return err == nil
	})
	if err != nil {
		return err
	}
	s.WriteObjectEnd()
	return s.Error
}
