package gateway

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/default.yaml
var defaultFixtures []byte

// Fixtures is the YAML document that seeds the sources
type Fixtures struct {
	Characters []Record `yaml:"characters"`
	Planets    []Record `yaml:"planets"`
}

// ByKind returns the records of one kind
func (f Fixtures) ByKind(kind Kind) []Record {
	switch kind {
	case Character:
		return f.Characters
	case Planet:
		return f.Planets
	default:
		return nil
	}
}

// All returns characters followed by planets
func (f Fixtures) All() []Record {
	all := make([]Record, 0, len(f.Characters)+len(f.Planets))
	all = append(all, f.Characters...)
	return append(all, f.Planets...)
}

// DefaultFixtures returns the fixtures bundled with the package
func DefaultFixtures() Fixtures {
	f, err := ParseFixtures(defaultFixtures)
	if err != nil {
		panic(fmt.Sprintf("bundled fixtures: %v", err))
	}
	return f
}

// LoadFixtures reads fixtures from a YAML file
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes YAML fixtures. Kinds are set from the section a record
// appears in and missing IDs are derived from kind and name.
func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	var err error
	if f.Characters, err = normalize(Character, f.Characters); err != nil {
		return Fixtures{}, err
	}
	if f.Planets, err = normalize(Planet, f.Planets); err != nil {
		return Fixtures{}, err
	}
	return f, nil
}

func normalize(kind Kind, records []Record) ([]Record, error) {
	out := make([]Record, 0, len(records))
	for i, r := range records {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return nil, fmt.Errorf("%s fixture %d: name is required", kind, i)
		}
		r.Kind = kind
		if r.ID == "" {
			r.ID = RecordID(kind, r.Name)
		}
		out = append(out, r)
	}
	return out, nil
}
