package transcode

import (
	"io"

	"github.com/davecgh/go-spew/spew"

	"github.com/ergo-services/amf3/amf3"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump writes the Go representation of v. Cycles are cut by spew.
func Dump(w io.Writer, v amf3.Value) {
	dumpConfig.Fdump(w, v)
}
