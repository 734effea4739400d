package transcode

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ergo-services/amf3/amf3"
)

func TestYAML(t *testing.T) {
	r := require.New(t)

	for _, opts := range []Options{{}, {Compact: true}} {
		var out bytes.Buffer
		r.NoError(YAML(&out, sample(), opts))

		var back map[string]interface{}
		r.NoError(yaml.Unmarshal(out.Bytes(), &back), out.String())

		r.Equal("Pt", back[amf3.TypeNameKey])
		r.Equal(1, back["x"])
		r.Equal(1.5, back["f"])
		r.Equal(2.0, back["two"])
		r.Equal(`a"b`, back["s"])
		r.Equal(map[string]interface{}{"$undefined": true}, back["u"])
		r.Equal(map[string]interface{}{"$xml": "<a/>"}, back["xml"])
		r.Equal([]interface{}{nil, true}, back["arr"])
		r.Equal("\x01\x02\x03", back["b"])

		// yaml.v3 leaves timestamps as strings in interface{}
		date, err := time.Parse(time.RFC3339, back["d"].(string))
		r.NoError(err)
		r.True(date.Equal(time.UnixMilli(1e12)))
	}
}

func TestYAMLCycle(t *testing.T) {
	array := amf3.Array{nil}
	array[0] = array
	err := YAML(&bytes.Buffer{}, array, Options{})
	require.True(t, errors.Is(err, ErrCycle))
}
