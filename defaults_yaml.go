package paramgrid

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeDefaultsYAML parses a YAML defaults document. It has the same
// layout as the JSON document and keeps mapping order.
func DecodeDefaultsYAML(data []byte) (*Defaults, error) {
	return decodeDefaultsYAML(data, "")
}

func decodeDefaultsYAML(data []byte, source string) (*Defaults, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDefaults)
	}
	var buf bytes.Buffer
	if err := writeYAMLNode(&buf, root.Content[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
	}
	return decodeDefaultsJSON(buf.Bytes(), source)
}

// writeYAMLNode renders n as JSON, keeping the order of mapping keys.
func writeYAMLNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.AliasNode:
		return writeYAMLNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeYAMLNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		var out []byte
		var err error
		switch n.ShortTag() {
		case "!!str", "!!timestamp":
			out, err = json.Marshal(n.Value)
		default:
			var v any
			if err := n.Decode(&v); err != nil {
				return fmt.Errorf("line %d: %w", n.Line, err)
			}
			out, err = json.Marshal(v)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(out)
		return nil
	}
	return fmt.Errorf("line %d: unsupported yaml node", n.Line)
}
