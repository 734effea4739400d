package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/ergo-services/amf3/amf3"
)

func run(t *testing.T, stdin []byte, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Reader = bytes.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"amf3", "--log-level", "none"}, args...))
	return out.Bytes(), err
}

var encoded = []byte{
	amf3.TypeObject, 0x0b, 0x01, 0x03, 'a', amf3.TypeInteger, 0x01, 0x01,
	amf3.TypeArray, 0x05, 0x01, amf3.TypeInteger, 0x01, amf3.TypeString, 0x03, 'x',
}

func TestEncodeCommand(t *testing.T) {
	out, err := run(t, []byte(`{"a":1} [1,"x"]`), "encode")
	require.NoError(t, err)
	require.Equal(t, encoded, out)
}

func TestDecodeCommand(t *testing.T) {
	r := require.New(t)

	out, err := run(t, encoded, "decode", "--format", "json", "--compact")
	r.NoError(err)
	r.Equal("{\"a\":1}\n[1,\"x\"]\n", string(out))

	out, err = run(t, encoded, "decode", "--format", "yaml")
	r.NoError(err)
	r.True(strings.HasPrefix(string(out), "---\n"))

	_, err = run(t, encoded, "decode", "--format", "xml")
	r.Error(err)
}

func TestDecodeCommandFiles(t *testing.T) {
	r := require.New(t)

	dir := t.TempDir()
	good := filepath.Join(dir, "good.amf")
	bad := filepath.Join(dir, "bad.amf")
	r.NoError(os.WriteFile(good, encoded, 0600))
	r.NoError(os.WriteFile(bad, []byte{0x0d}, 0600))

	out, err := run(t, nil, "decode", "--compact", good, bad, filepath.Join(dir, "missing.amf"))
	r.Error(err)
	merr, ok := err.(*multierror.Error)
	r.True(ok, "%T", err)
	r.Len(merr.Errors, 2)
	r.Equal("{\"a\":1}\n[1,\"x\"]\n", string(out))
}

func TestEncodeCommandSharedValues(t *testing.T) {
	r := require.New(t)

	input := []byte(`{"$date":"2020-01-01T00:00:00.000Z"} {"$date":"2020-01-01T00:00:00.000Z"} {"$xml":"<a/>"} {"$xml":"<a/>"}`)
	packed, err := run(t, input, "encode")
	r.NoError(err)

	out, err := run(t, packed, "decode", "--compact")
	r.NoError(err)
	r.Equal(strings.Repeat("{\"$date\":\"2020-01-01T00:00:00.000Z\"}\n", 2)+
		strings.Repeat("{\"$xml\":\"<a/>\"}\n", 2), string(out))

	// sharing objects between the documents makes them depend on each other
	shared, err := run(t, input, "encode", "--reset-objects=false")
	r.NoError(err)
	r.Less(len(shared), len(packed))
	_, err = run(t, shared, "decode")
	r.Error(err)
}

func TestCompressedRoundtrip(t *testing.T) {
	r := require.New(t)

	packed, err := run(t, []byte(`{"a":1} [1,"x"]`), "encode", "--deflate", "zlib", "--level", "2")
	r.NoError(err)
	r.NotEqual(encoded, packed)

	out, err := run(t, packed, "decode", "--inflate", "zlib", "--compact")
	r.NoError(err)
	r.Equal("{\"a\":1}\n[1,\"x\"]\n", string(out))
}

func TestInspectCommand(t *testing.T) {
	r := require.New(t)

	out, err := run(t, encoded, "inspect")
	r.NoError(err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	r.Len(lines, 4)
	r.Contains(lines[1], "OBJECT")
	r.Contains(lines[1], "record")
	r.True(strings.HasPrefix(lines[2], "8 "))
	r.Contains(lines[2], "ARRAY")
	r.Contains(lines[3], "total 16 B")
}

func TestDemoCommand(t *testing.T) {
	r := require.New(t)

	out, err := run(t, nil, "demo")
	r.NoError(err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	r.Len(lines, 18)
	r.Equal("243543523", lines[0])
	r.Equal(`{"Address":"地址","ID":88888888,"Name":"姓名"}`, lines[7])
	r.Equal("2", lines[17])
}
