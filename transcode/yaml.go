package transcode

import (
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ergo-services/amf3/amf3"
)

// YAML writes v as a YAML document. Dates, byte arrays and special doubles
// use the native YAML types (!!timestamp, !!binary, .nan, .inf).
func YAML(w io.Writer, v amf3.Value, opts Options) error {
	b := yamlBuilder{guard: make(guard), flow: opts.Compact}
	node, err := b.node(v)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}

type yamlBuilder struct {
	guard guard
	flow  bool
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func (b *yamlBuilder) node(v amf3.Value) (*yaml.Node, error) {
	switch x := v.(type) {
	case nil:
		return scalar("!!null", "null"), nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(x)), nil
	case int32:
		return scalar("!!int", strconv.FormatInt(int64(x), 10)), nil
	case float64:
		switch {
		case math.IsNaN(x):
			return scalar("!!float", ".nan"), nil
		case math.IsInf(x, 1):
			return scalar("!!float", ".inf"), nil
		case math.IsInf(x, -1):
			return scalar("!!float", "-.inf"), nil
		}
		return scalar("!!float", formatDouble(x)), nil
	case string:
		return scalar("!!str", x), nil
	case time.Time:
		return scalar("!!timestamp", x.UTC().Format(DateLayout)), nil
	case []byte:
		return scalar("!!binary", base64.StdEncoding.EncodeToString(x)), nil

	case amf3.Undefined:
		return b.annotated(amf3.KindUndefined, scalar("!!bool", "true")), nil
	case amf3.XML:
		return b.annotated(amf3.KindXML, scalar("!!str", string(x))), nil
	case amf3.XMLDocument:
		return b.annotated(amf3.KindXMLDocument, scalar("!!str", string(x))), nil

	case amf3.Array:
		key, err := b.guard.enter(x)
		if err != nil {
			return nil, err
		}
		defer b.guard.leave(key)

		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if b.flow {
			seq.Style = yaml.FlowStyle
		}
		for i := range x {
			item, err := b.node(x[i])
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, item)
		}
		return seq, nil

	case *amf3.AssocArray:
		return b.mapping(x, "", &x.Fields)
	case *amf3.Record:
		return b.mapping(x, x.Type, &x.Fields)
	}

	return nil, notDecoded(v)
}

func (b *yamlBuilder) annotated(kind amf3.Kind, value *yaml.Node) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Style: yaml.FlowStyle}
	m.Content = []*yaml.Node{scalar("!!str", annotation(kind)), value}
	return m
}

func (b *yamlBuilder) mapping(container amf3.Value, typeName string, fields *amf3.Fields) (*yaml.Node, error) {
	key, err := b.guard.enter(container)
	if err != nil {
		return nil, err
	}
	defer b.guard.leave(key)

	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if b.flow {
		m.Style = yaml.FlowStyle
	}
	if typeName != "" {
		m.Content = append(m.Content, scalar("!!str", amf3.TypeNameKey), scalar("!!str", typeName))
	}
	fields.Range(func(k string, v amf3.Value) bool {
		var value *yaml.Node
		value, err = b.node(v)
		if err != nil {
			return false
		}
		m.Content = append(m.Content, scalar("!!str", k), value)
		return true
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
