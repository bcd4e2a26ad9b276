package loader

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ridoystarlord/mongoprov/schema"
	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Version     string           `yaml:"version"`
	Database    string           `yaml:"database"`
	Collections []yamlCollection `yaml:"collections"`
	Admin       yamlAdmin        `yaml:"admin"`
}

type yamlCollection struct {
	Name    string      `yaml:"name"`
	Indexes []yamlIndex `yaml:"indexes"`
}

// yamlIndex accepts either a single "field" with a "kind", or a "keys" list.
type yamlIndex struct {
	Name   string    `yaml:"name"`
	Field  string    `yaml:"field"`
	Kind   string    `yaml:"kind"`
	Keys   []yamlKey `yaml:"keys"`
	Unique bool      `yaml:"unique"`
}

type yamlKey struct {
	Field string `yaml:"field"`
	Kind  string `yaml:"kind"`
}

type yamlAdmin struct {
	Collection string `yaml:"collection"`
	Name       string `yaml:"name"`
	Policy     string `yaml:"policy"`
}

// LoadDefinitionFromYAML reads a schema file from disk.
func LoadDefinitionFromYAML(filename string) (*schema.Definition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes a YAML schema document and applies defaults.
// Unknown keys are rejected so that typos do not silently drop an index.
func ParseDefinition(data []byte) (*schema.Definition, error) {
	var yf yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&yf); err != nil {
		return nil, fmt.Errorf("unmarshalling YAML: %w", err)
	}

	def := &schema.Definition{
		Version:  yf.Version,
		Database: yf.Database,
		Admin: schema.Admin{
			Collection: yf.Admin.Collection,
			Name:       yf.Admin.Name,
		},
	}
	if yf.Admin.Policy != "" {
		policy, err := schema.ParseAdminPolicy(yf.Admin.Policy)
		if err != nil {
			return nil, fmt.Errorf("admin: %w", err)
		}
		def.Admin.Policy = policy
	}

	for _, c := range yf.Collections {
		coll := schema.Collection{Name: c.Name}
		for i, idx := range c.Indexes {
			index, err := convertIndex(idx)
			if err != nil {
				return nil, fmt.Errorf("collection %s, index #%d: %w", c.Name, i+1, err)
			}
			coll.Indexes = append(coll.Indexes, index)
		}
		def.Collections = append(def.Collections, coll)
	}

	def.ApplyDefaults()
	return def, nil
}

func convertIndex(idx yamlIndex) (schema.Index, error) {
	index := schema.Index{Name: idx.Name, Unique: idx.Unique}

	if idx.Field != "" {
		if len(idx.Keys) > 0 {
			return index, fmt.Errorf("use either field or keys, not both")
		}
		idx.Keys = []yamlKey{{Field: idx.Field, Kind: idx.Kind}}
	} else if idx.Kind != "" {
		return index, fmt.Errorf("kind %q given without field", idx.Kind)
	}

	for _, k := range idx.Keys {
		kind, err := parseKind(k.Kind)
		if err != nil {
			return index, fmt.Errorf("field %s: %w", k.Field, err)
		}
		index.Keys = append(index.Keys, schema.Key{Field: k.Field, Kind: kind})
	}
	return index, nil
}

func parseKind(s string) (schema.KeyKind, error) {
	switch s {
	case "", "asc", "1":
		return schema.Asc, nil
	case "desc", "-1":
		return schema.Desc, nil
	case "text":
		return schema.Text, nil
	}
	return "", fmt.Errorf("unknown index kind %q (want asc, desc or text)", s)
}
