package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/ergo-services/amf3/amf3"
	"github.com/ergo-services/amf3/lib"
)

var inspectCmd = &cli.Command{
	Name:      "inspect",
	Usage:     "list the top-level values with their offsets and sizes",
	ArgsUsage: "[FILE]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "inflate", Usage: "compressed input: zlib or gzip"},
	},
	Action: func(ctx *cli.Context) error {
		name := ctx.Args().First()
		if name == "" {
			name = "-"
		}
		mode := config.Compression.Mode
		if ctx.IsSet("inflate") {
			mode = ctx.String("inflate")
		}

		buf, err := readInput(ctx, name)
		if err != nil {
			return err
		}
		buf, err = inflate(buf, mode)
		if err != nil {
			return err
		}
		defer lib.ReleaseBuffer(buf)

		w := ctx.App.Writer
		fmt.Fprintf(w, "%-8s %-10s %-12s %s\n", "OFFSET", "TAG", "SIZE", "KIND")

		d := amf3.NewDecoderWithOptions(buf.B, 0, buf.Len(), amf3.DecodeOptions{Logger: log})
		for d.More() {
			offset := d.Consumed()
			tag := buf.B[offset]
			v, err := d.Decode()
			if err != nil {
				return errors.Wrapf(err, "inspect: value at %d", offset)
			}
			size := d.Consumed() - offset
			fmt.Fprintf(w, "%-8d %-10s %-12s %s\n", offset, amf3.TagName(tag), humanize.Bytes(uint64(size)), amf3.KindOf(v))
		}
		fmt.Fprintf(w, "total %s\n", humanize.Bytes(uint64(buf.Len())))
		return nil
	},
}
