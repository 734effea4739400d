package main

import (
	"github.com/dustin/go-humanize"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/ergo-services/amf3/amf3"
	"github.com/ergo-services/amf3/lib"
	"github.com/ergo-services/amf3/transcode"
)

var encodeCmd = &cli.Command{
	Name:  "encode",
	Usage: "read JSON documents from stdin and write them as AMF3",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "deflate", Usage: "compress the output: zlib or gzip"},
		&cli.IntFlag{Name: "level", Usage: "compression level: 0 (default), 1 (speed), 2 (size)"},
		&cli.IntFlag{Name: "capacity", Usage: "initial buffer size"},
		&cli.BoolFlag{Name: "reset-objects", Value: true, Usage: "do not share objects between the documents, false makes the output a single stream only a shared decoder session can read"},
	},
	Action: func(ctx *cli.Context) error {
		settings := config
		if ctx.IsSet("deflate") {
			settings.Compression.Mode = ctx.String("deflate")
		}
		if ctx.IsSet("level") {
			settings.Compression.Level = ctx.Int("level")
		}
		if ctx.IsSet("capacity") {
			settings.Encoder.Capacity = ctx.Int("capacity")
		}
		if ctx.IsSet("reset-objects") {
			settings.Encoder.ResetObjects = ctx.Bool("reset-objects")
		}
		if err := settings.Validate(); err != nil {
			return err
		}

		input, err := readInput(ctx, "-")
		if err != nil {
			return err
		}
		defer lib.ReleaseBuffer(input)

		values, err := transcode.FromJSON(input.B)
		if err != nil {
			return errors.Wrap(err, "encode: read JSON")
		}

		e := amf3.NewEncoderWithOptions(settings.EncodeOptions(log))
		for i, v := range values {
			if err := e.Encode(v); err != nil {
				return errors.Wrapf(err, "encode: document %d", i)
			}
		}

		out, err := lib.Compress(settings.Compression.Mode, e.Bytes(), settings.Compression.Level)
		if err != nil {
			return errors.Wrap(err, "encode: deflate")
		}
		defer lib.ReleaseBuffer(out)

		level.Info(log).Log("event", "encoded",
			"values", len(values),
			"size", humanize.Bytes(uint64(e.Len())),
			"written", humanize.Bytes(uint64(out.Len())),
			"compression", settings.Compression.Mode)
		return out.WriteDataTo(ctx.App.Writer)
	},
}
