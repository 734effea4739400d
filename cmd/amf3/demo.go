package main

import (
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/ergo-services/amf3/amf3"
)

var demoCmd = &cli.Command{
	Name:  "demo",
	Usage: "encode a batch of sample values, decode them back and print",
	Action: func(ctx *cli.Context) error {
		output := config.Output
		output.Compact = true
		return demo(ctx, time.Now(), output)
	},
}

func demoValues(now time.Time) []amf3.Value {
	values := []amf3.Value{
		243543523,
		4543524.4,
		nil,
		false,
		true,
		now,
		"字符串",
		map[string]interface{}{
			"Name":    "姓名",
			"Address": "地址",
			"ID":      88888888,
		},
	}
	for i := 0; i < 10; i++ {
		values = append(values, 2)
	}
	return values
}

func demo(ctx *cli.Context, now time.Time, output OutputConfig) error {
	e := amf3.NewEncoderWithOptions(amf3.EncodeOptions{
		Capacity:      amf3.MaxCapacity,
		DisableGrowth: true,
		ResetObjects:  true,
		Logger:        log,
	})
	values := demoValues(now)
	for i, v := range values {
		if err := e.Encode(v); err != nil {
			return errors.Wrapf(err, "demo: value %d", i)
		}
	}
	level.Debug(log).Log("event", "demo encoded", "values", len(values), "size", e.Len())

	d := amf3.NewDecoderWithOptions(e.Bytes(), 0, e.Len(), amf3.DecodeOptions{Logger: log})
	for d.More() {
		v, err := d.Decode()
		if err != nil {
			return errors.Wrap(err, "demo")
		}
		if err := render(ctx.App.Writer, v, output); err != nil {
			return err
		}
	}
	return nil
}
