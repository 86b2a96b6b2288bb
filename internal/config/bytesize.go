package config

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that accepts either a plain integer or a
// human-readable size such as "512MiB" or "1 GB" in YAML.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid size at line %d: %w", node.Line, err)
	}
	parsed, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("invalid size %q at line %d: %w", s, node.Line, err)
	}
	*b = ByteSize(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	if b < 0 {
		return int64(b), nil
	}
	return humanize.IBytes(uint64(b)), nil
}
