package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Capability is a named permission set grantable against a target account.
type Capability struct {
	ARN  string `yaml:"arn"`
	Risk string `yaml:"risk"` // LOW or HIGH
}

// Catalog maps human-facing target and capability names to the provider
// identifiers used in assignments. It is loaded once at startup; the
// controller never mutates it.
type Catalog struct {
	// Accounts maps account name to AWS account id.
	Accounts map[string]string `yaml:"accounts"`
	// PermissionSets maps capability name to its permission set.
	PermissionSets map[string]Capability `yaml:"permission_sets"`
}

// AccountID resolves a target name to its account id.
func (c *Catalog) AccountID(name string) (string, bool) {
	id, ok := c.Accounts[name]
	return id, ok
}

// PermissionSet resolves a capability name.
func (c *Catalog) PermissionSet(name string) (Capability, bool) {
	ps, ok := c.PermissionSets[name]
	return ps, ok
}

// AccountNames returns the known target names, sorted.
func (c *Catalog) AccountNames() []string {
	names := make([]string, 0, len(c.Accounts))
	for name := range c.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PermissionSetNames returns the known capability names, sorted.
func (c *Catalog) PermissionSetNames() []string {
	names := make([]string, 0, len(c.PermissionSets))
	for name := range c.PermissionSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadCatalog reads and validates the YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(cat.Accounts) == 0 {
		return nil, fmt.Errorf("catalog %s: no accounts defined", path)
	}
	if len(cat.PermissionSets) == 0 {
		return nil, fmt.Errorf("catalog %s: no permission sets defined", path)
	}
	for name, ps := range cat.PermissionSets {
		if ps.ARN == "" {
			return nil, fmt.Errorf("catalog %s: permission set %q has no arn", path, name)
		}
		switch strings.ToUpper(ps.Risk) {
		case "LOW", "HIGH":
		default:
			return nil, fmt.Errorf("catalog %s: permission set %q has invalid risk %q (want LOW or HIGH)", path, name, ps.Risk)
		}
	}
	return &cat, nil
}
