package config

import (
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

// Registry builds and freezes the schema registry declared under schema:.
// Invalid declarations fail with a ConfigError.
func (c *Config) Registry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, ot := range c.Schema {
		fields := make([]schema.FieldSpec, len(ot.Fields))
		for i, f := range ot.Fields {
			fields[i] = schema.FieldSpec{
				Name:     f.Name,
				Kind:     schema.Kind(f.Kind),
				Type:     schema.ValueType(f.Type),
				Boost:    f.Boost,
				Nullable: f.Nullable,
			}
		}
		if err := reg.Register(ot.Type, fields); err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	return reg, nil
}

// GroupOf returns the index group serving an object type.
func (c *Config) GroupOf(objectType string) (string, bool) {
	for _, name := range c.GroupNames() {
		for _, key := range c.IndexGroups[name].Types {
			if key == objectType {
				return name, true
			}
		}
	}
	return "", false
}
