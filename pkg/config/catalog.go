package config

import (
	_ "embed"
	"fmt"

	"github.com/cuemby/modelctl/pkg/types"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

//go:embed rbac.yaml
var defaultPolicy []byte

// DefaultPolicy returns the access-control manifest applied when no
// manifest file is configured
func DefaultPolicy() []byte {
	return append([]byte(nil), defaultPolicy...)
}

type catalogEntry struct {
	types.ModelProfile `yaml:",inline"`

	// Base names a profile whose resources this entry reuses
	Base types.ModelType `yaml:"base,omitempty"`
}

type catalogFile struct {
	Profiles []catalogEntry `yaml:"profiles"`
}

// Catalog is the read-only mapping from model type to profile
type Catalog struct {
	profiles map[types.ModelType]types.ModelProfile
}

var defaultCatalog = mustParseCatalog(profilesYAML)

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// ParseCatalog parses a catalog document, resolving base references
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile catalog: %w", err)
	}

	entries := lo.KeyBy(file.Profiles, func(e catalogEntry) types.ModelType {
		return e.ModelType
	})
	if len(entries) != len(file.Profiles) {
		return nil, fmt.Errorf("profile catalog has duplicate model types")
	}

	c := &Catalog{profiles: make(map[types.ModelType]types.ModelProfile, len(entries))}
	for _, e := range file.Profiles {
		p := e.ModelProfile
		if e.Base != "" {
			base, ok := entries[e.Base]
			if !ok {
				return nil, fmt.Errorf("profile %s: unknown base %s", e.ModelType, e.Base)
			}
			if base.Base != "" {
				return nil, fmt.Errorf("profile %s: base %s is itself derived", e.ModelType, e.Base)
			}
			p.Resources = base.Resources
		}
		if p.Workload == "" || p.ReleaseName == "" || p.Chart == "" {
			return nil, fmt.Errorf("profile %s: workload, releaseName and chart are required", e.ModelType)
		}
		c.profiles[p.ModelType] = p
	}
	return c, nil
}

func mustParseCatalog(data []byte) *Catalog {
	c, err := ParseCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Profile looks up the profile for a model type
func (c *Catalog) Profile(m types.ModelType) (types.ModelProfile, bool) {
	p, ok := c.profiles[m]
	if ok {
		p.Features = append([]string(nil), p.Features...)
	}
	return p, ok
}

// Profiles returns every profile in enum order
func (c *Catalog) Profiles() []types.ModelProfile {
	return lo.FilterMap(types.ModelTypes, func(m types.ModelType, _ int) (types.ModelProfile, bool) {
		return c.Profile(m)
	})
}
