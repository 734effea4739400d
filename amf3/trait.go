package amf3

import (
	"github.com/pkg/errors"
)

// Trait is the class definition of an object: the class alias, the names
// of the sealed members and the flags. Traits are immutable once created.
type Trait struct {
	Name           string
	Members        []string
	Externalizable bool
	Dynamic        bool
}

// Anonymous returns true if the trait has no class alias.
func (t *Trait) Anonymous() bool {
	return t.Name == ""
}

// handle returns the U29 header of an inline object with inline trait:
//
//	members<<4 | dynamic<<3 | externalizable<<2 | 0b11
func (t *Trait) handle() int32 {
	h := int32(len(t.Members))<<4 | 0x03
	if t.Externalizable {
		h |= 0x04
	}
	if t.Dynamic {
		h |= 0x08
	}
	return h
}

// readTrait resolves the trait of an object. The handle is the object handle
// shifted once (object reference bit is already stripped).
func (d *Decoder) readTrait(handle int) (*Trait, error) {
	if handle&1 == 0 {
		idx := handle >> 1
		if idx >= len(d.traits) {
			return nil, errMalformed("trait reference %d out of range (%d)", idx, len(d.traits))
		}
		return d.traits[idx], nil
	}

	handle >>= 1
	trait := &Trait{
		Externalizable: handle&1 != 0,
		Dynamic:        handle&2 != 0,
	}
	n := handle >> 2

	name, err := d.readUTF8()
	if err != nil {
		return nil, errors.Wrap(err, "trait name")
	}
	trait.Name = name

	// every member name takes at least one byte
	if n > d.Remaining() {
		return nil, errMalformed("trait %q declares %d members, %d bytes left", name, n, d.Remaining())
	}
	if n > 0 {
		trait.Members = make([]string, n)
	}
	for i := 0; i < n; i++ {
		member, err := d.readUTF8()
		if err != nil {
			return nil, errors.Wrapf(err, "trait %q member %d", name, i)
		}
		trait.Members[i] = member
	}

	d.traits = append(d.traits, trait)
	return trait, nil
}
