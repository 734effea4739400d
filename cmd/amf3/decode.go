package main

import (
	"io"

	"github.com/go-kit/kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/ergo-services/amf3/amf3"
	"github.com/ergo-services/amf3/lib"
	"github.com/ergo-services/amf3/transcode"
)

var decodeCmd = &cli.Command{
	Name:      "decode",
	Usage:     "decode AMF3 data and print the values",
	ArgsUsage: "[FILE...]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "output format: json, yaml, cbor or dump"},
		&cli.StringFlag{Name: "inflate", Usage: "compressed input: zlib or gzip"},
		&cli.BoolFlag{Name: "compact", Usage: "no indentation"},
	},
	Action: func(ctx *cli.Context) error {
		output := config.Output
		if ctx.IsSet("format") {
			output.Format = ctx.String("format")
		}
		if ctx.Bool("compact") {
			output.Compact = true
		}
		if outputFormats[output.Format] == false {
			return errors.Errorf("decode: unknown format %q", output.Format)
		}
		mode := config.Compression.Mode
		if ctx.IsSet("inflate") {
			mode = ctx.String("inflate")
		}

		names := ctx.Args().Slice()
		if len(names) == 0 {
			names = []string{"-"}
		}

		var result error
		for _, name := range names {
			if err := decodeInput(ctx, name, mode, output); err != nil {
				level.Warn(log).Log("event", "decode failed", "input", name, "err", err)
				result = multierror.Append(result, errors.Wrapf(err, "decode %s", name))
			}
		}
		return result
	},
}

func decodeInput(ctx *cli.Context, name, mode string, output OutputConfig) error {
	buf, err := readInput(ctx, name)
	if err != nil {
		return err
	}
	buf, err = inflate(buf, mode)
	if err != nil {
		return err
	}
	defer lib.ReleaseBuffer(buf)

	d := amf3.NewDecoderWithOptions(buf.B, 0, buf.Len(), amf3.DecodeOptions{Logger: log})
	n := 0
	for d.More() {
		v, err := d.Decode()
		if err != nil {
			return errors.Wrapf(err, "value %d at %d", n, d.Consumed())
		}
		if err := render(ctx.App.Writer, v, output); err != nil {
			return err
		}
		n++
	}
	level.Debug(log).Log("event", "decoded", "input", name, "values", n)
	return nil
}

func render(w io.Writer, v amf3.Value, output OutputConfig) error {
	opts := transcode.Options{Compact: output.Compact}
	switch output.Format {
	case "json":
		return transcode.JSON(w, v, opts)
	case "yaml":
		if _, err := io.WriteString(w, "---\n"); err != nil {
			return err
		}
		return transcode.YAML(w, v, opts)
	case "cbor":
		b, err := transcode.CBOR(v)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "dump":
		transcode.Dump(w, v)
		return nil
	}
	return errors.Errorf("unknown format %q", output.Format)
}
