// amf3 decodes, encodes and inspects AMF3 data
package main

import (
	"fmt"
	"io"
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/ergo-services/amf3/lib"
)

// Version and Build are set by ldflags
var (
	Version = "snapshot"
	Build   = ""
)

var (
	log    kitlog.Logger = kitlog.NewNopLogger()
	config               = DefaultConfig()
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "amf3",
		Usage:   "decode, encode and inspect AMF3 data",
		Version: Version,

		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML configuration file"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, error or none"},
		},

		Before: initApp,
		Commands: []*cli.Command{
			decodeCmd,
			encodeCmd,
			inspectCmd,
			demoCmd,
		},
	}
}

func newLogger(w io.Writer, name string) (kitlog.Logger, error) {
	var allow level.Option
	switch name {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	case "none":
		allow = level.AllowNone()
	default:
		return nil, errors.Errorf("unknown log level %q", name)
	}

	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	return level.NewFilter(logger, allow), nil
}

func initApp(ctx *cli.Context) error {
	logger, err := newLogger(ctx.App.ErrWriter, ctx.String("log-level"))
	if err != nil {
		return err
	}
	log = logger

	config = DefaultConfig()
	if path := ctx.String("config"); path != "" {
		config, err = ReadConfig(path)
		if err != nil {
			return err
		}
		level.Debug(log).Log("event", "read config", "path", path)
	}
	return nil
}

// readInput reads the file or stdin if the name is "-". The returned buffer
// must be released with lib.ReleaseBuffer.
func readInput(ctx *cli.Context, name string) (*lib.Buffer, error) {
	var r io.Reader = ctx.App.Reader
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	buf := lib.TakeBuffer()
	if err := buf.ReadAllFrom(r, 0); err != nil {
		lib.ReleaseBuffer(buf)
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return buf, nil
}

// inflate unpacks the input if the compression mode is set
func inflate(buf *lib.Buffer, mode string) (*lib.Buffer, error) {
	if mode == "" || mode == lib.CompressionNone {
		return buf, nil
	}
	unpacked, err := lib.Decompress(mode, buf.B, config.Compression.Limit)
	lib.ReleaseBuffer(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "inflate (%s)", mode)
	}
	level.Debug(log).Log("event", "inflate", "mode", mode, "size", unpacked.Len())
	return unpacked, nil
}

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("%s (rev: %s)\n", c.App.Version, Build)
	}

	if err := newApp().Run(os.Args); err != nil {
		level.Error(log).Log("run-failure", err)
		os.Exit(1)
	}
}
