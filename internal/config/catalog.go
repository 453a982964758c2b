package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/onelab-hq/onelab-server/internal/tools"
)

// Catalog is the deploy-time pricing document: per-tool credit costs and the
// purchasable credit packages the webhook resolves package ids against.
type Catalog struct {
	ToolCosts map[string]int `yaml:"tool_costs"`
	Packages  []Package      `yaml:"packages"`
}

// Package is one purchasable credit bundle. Unlimited packages carry zero
// credits and flip the plan instead.
type Package struct {
	ID        string `yaml:"id"`
	Credits   int    `yaml:"credits"`
	PriceUSD  int    `yaml:"price_usd"`
	Unlimited bool   `yaml:"unlimited"`
}

// DefaultCatalog returns the stock pricing.
func DefaultCatalog() Catalog {
	costs := make(map[string]int)
	for tool, cost := range tools.DefaultCosts() {
		costs[string(tool)] = cost
	}
	return Catalog{
		ToolCosts: costs,
		Packages: []Package{
			{ID: "starter", Credits: 100, PriceUSD: 9},
			{ID: "pro", Credits: 500, PriceUSD: 29},
			{ID: "unlimited", PriceUSD: 79, Unlimited: true},
		},
	}
}

// LoadCatalog reads the YAML catalog at path, falling back to defaults for
// an empty path. Unknown tool names are rejected so typos do not silently
// make a tool free.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	defaults := DefaultCatalog()
	if len(cat.ToolCosts) == 0 {
		cat.ToolCosts = defaults.ToolCosts
	} else {
		for name, cost := range cat.ToolCosts {
			if _, err := tools.Parse(name); err != nil {
				return Catalog{}, fmt.Errorf("catalog tool_costs: %w", err)
			}
			if cost <= 0 {
				return Catalog{}, fmt.Errorf("catalog tool_costs: %s must cost at least 1 credit", name)
			}
		}
		// Tools absent from the file keep their default price.
		for name, cost := range defaults.ToolCosts {
			if _, ok := cat.ToolCosts[name]; !ok {
				cat.ToolCosts[name] = cost
			}
		}
	}
	if len(cat.Packages) == 0 {
		cat.Packages = defaults.Packages
	}
	for _, p := range cat.Packages {
		if p.ID == "" {
			return Catalog{}, fmt.Errorf("catalog packages: package without id")
		}
		if !p.Unlimited && p.Credits <= 0 {
			return Catalog{}, fmt.Errorf("catalog packages: %s needs credits or unlimited", p.ID)
		}
	}
	return cat, nil
}

// Costs converts the catalog's tool prices into the typed cost table.
func (c Catalog) Costs() tools.Costs {
	costs := make(tools.Costs, len(c.ToolCosts))
	for name, cost := range c.ToolCosts {
		costs[tools.Type(name)] = cost
	}
	return costs
}

// FindPackage resolves a package id, reporting whether it exists.
func (c Catalog) FindPackage(id string) (Package, bool) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}
