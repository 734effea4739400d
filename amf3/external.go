package amf3

import (
	"time"
)

// Externalizable is implemented by values with their own wire format.
// The Encoder calls WriteExternal instead of the default object encoding
// and keeps whatever it writes. The Decoder can't read such data back:
// externalizable traits are rejected with ErrUnsupportedFeature.
type Externalizable interface {
	WriteExternal(w ExternalWriter) error
}

// ExternalWriter is the part of the Encoder exposed to Externalizable values.
// Nothing here resets the reference tables except WriteObject.
type ExternalWriter interface {
	WriteUndefined() error
	WriteNull() error
	WriteBool(v bool) error
	WriteByte(v byte) error
	WriteBytes(v []byte) error
	WriteU29(v int32) error
	WriteInt(v int64) error
	WriteFloat(v float32) error
	WriteDouble(v float64) error
	WriteDate(v time.Time) error
	WriteString(v string) error
	// WriteKey writes a string without the type marker (object and array keys).
	WriteKey(key string) error
	// WriteReference writes a reference to v if it has been written before.
	// Otherwise v is registered in the object table and false is returned.
	WriteReference(v Value) (bool, error)
	WriteValue(v Value) error
	// WriteObject writes v as a top-level value: the string table is cleared first.
	WriteObject(v Value) error
}
