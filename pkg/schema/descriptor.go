package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// descriptor is the on-disk YAML shape of a record type.
type descriptor struct {
	Table       string               `yaml:"table"`
	Attributes  []string             `yaml:"attributes"`
	PrimaryKeys []string             `yaml:"primary_keys"`
	IDStrategy  IDStrategy           `yaml:"id_strategy"`
	Timestamps  yaml.Node            `yaml:"timestamps"`
	SoftDelete  yaml.Node            `yaml:"soft_delete"`
	Rules       []types.Rule         `yaml:"rules"`
	Relations   []types.RelationDecl `yaml:"relations"`
}

// Parse decodes a YAML descriptor for the named type and validates it.
// Unknown keys, malformed YAML and every schema violation are reported as
// types.ErrConfiguration.
func Parse(name string, data []byte) (*RecordType, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d descriptor
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, configErr(name, "empty descriptor")
		}
		return nil, fmt.Errorf("%w: %s: %v", types.ErrConfiguration, name, err)
	}

	rt := RecordType{
		Name:        name,
		Table:       d.Table,
		Attributes:  d.Attributes,
		PrimaryKeys: d.PrimaryKeys,
		Rules:       d.Rules,
		Relations:   d.Relations,
		IDStrategy:  d.IDStrategy,
	}

	var err error
	if rt.Timestamps, err = decodePolicy[TimestampSpec](name, "timestamps", &d.Timestamps); err != nil {
		return nil, err
	}
	if rt.SoftDelete, err = decodePolicy[SoftDeleteSpec](name, "soft_delete", &d.SoftDelete); err != nil {
		return nil, err
	}

	out := rt.clone()
	if err := out.prepare(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodePolicy accepts either a boolean switch or a mapping of settings.
// Absent or false yields nil; true yields the zero spec (defaults applied
// later by prepare).
func decodePolicy[T any](name, key string, n *yaml.Node) (*T, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		var on bool
		if err := n.Decode(&on); err != nil {
			return nil, configErr(name, "%s: want a boolean or a mapping", key)
		}
		if !on {
			return nil, nil
		}
		return new(T), nil
	case yaml.MappingNode:
		spec := new(T)
		if err := n.Decode(spec); err != nil {
			return nil, configErr(name, "%s: %v", key, err)
		}
		return spec, nil
	default:
		return nil, configErr(name, "%s: want a boolean or a mapping", key)
	}
}
