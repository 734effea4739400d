package main

import (
	"io"
	"os"

	kitlog "github.com/go-kit/kit/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/komkom/toml"
	"github.com/pkg/errors"

	"github.com/ergo-services/amf3/amf3"
	"github.com/ergo-services/amf3/lib"
)

type EncoderConfig struct {
	Capacity     int  `json:"capacity"`
	MaxCapacity  int  `json:"max-capacity"`
	Grow         bool `json:"grow"`
	ResetObjects bool `json:"reset-objects"`
}

type OutputConfig struct {
	Format  string `json:"format"`
	Compact bool   `json:"compact"`
}

type CompressionConfig struct {
	Mode  string `json:"mode"`
	Level int    `json:"level"`
	// Limit caps the unpacked size of compressed input (0 - unlimited)
	Limit int `json:"limit"`
}

// Config is read from a TOML file:
//
//	[encoder]
//	capacity = 4096
//	max-capacity = 65536
//	grow = true
//	reset-objects = false
//
//	[output]
//	format = "json"
//	compact = false
//
//	[compression]
//	mode = "none"
//	level = 0
//	limit = 0
type Config struct {
	Encoder     EncoderConfig     `json:"encoder"`
	Output      OutputConfig      `json:"output"`
	Compression CompressionConfig `json:"compression"`
}

var outputFormats = map[string]bool{
	"json": true,
	"yaml": true,
	"cbor": true,
	"dump": true,
}

func DefaultConfig() Config {
	return Config{
		Encoder: EncoderConfig{
			Capacity:     amf3.DefaultCapacity,
			MaxCapacity:  amf3.MaxCapacity,
			Grow:         true,
			ResetObjects: true,
		},
		Output: OutputConfig{
			Format: "json",
		},
		Compression: CompressionConfig{
			Mode: lib.CompressionNone,
		},
	}
}

// ParseConfig reads TOML and applies it on top of the defaults.
func ParseConfig(r io.Reader) (Config, error) {
	config := DefaultConfig()
	// toml.New turns TOML into a JSON stream
	decoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(toml.New(r))
	if err := decoder.Decode(&config); err != nil {
		return config, errors.Wrap(err, "config: decode")
	}
	return config, config.Validate()
}

func ReadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return DefaultConfig(), errors.Wrap(err, "config: open")
	}
	defer f.Close()
	return ParseConfig(f)
}

func (c Config) Validate() error {
	if outputFormats[c.Output.Format] == false {
		return errors.Errorf("config: unknown output format %q", c.Output.Format)
	}
	switch c.Compression.Mode {
	case lib.CompressionNone, lib.CompressionZLIB, lib.CompressionGZIP:
	default:
		return errors.Errorf("config: unknown compression mode %q", c.Compression.Mode)
	}
	if c.Compression.Level < 0 || c.Compression.Level > 2 {
		return errors.Errorf("config: compression level must be 0 (default), 1 (speed) or 2 (size)")
	}
	if c.Encoder.Capacity < 1 {
		return errors.Errorf("config: encoder capacity must be positive")
	}
	return nil
}

func (c Config) EncodeOptions(logger kitlog.Logger) amf3.EncodeOptions {
	return amf3.EncodeOptions{
		Capacity:      c.Encoder.Capacity,
		DisableGrowth: c.Encoder.Grow == false,
		MaxCapacity:   c.Encoder.MaxCapacity,
		ResetObjects:  c.Encoder.ResetObjects,
		Logger:        logger,
	}
}
