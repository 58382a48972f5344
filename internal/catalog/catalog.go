package catalog

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

const catalogFile = "config/deployments.yaml"

// Catalog is the read-only deployment and branding catalog.
type Catalog struct {
	doc   document
	index map[string]int
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	data, err := configFiles.ReadFile(catalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", catalogFile, err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	c := &Catalog{doc: doc, index: make(map[string]int, len(doc.Deployments))}
	for i, dep := range doc.Deployments {
		c.index[dep.ID] = i
	}
	if doc.DefaultDeployment != "" {
		if _, ok := c.index[doc.DefaultDeployment]; !ok {
			return nil, fmt.Errorf("default deployment %q is not in the catalog", doc.DefaultDeployment)
		}
	}
	return c, nil
}

// Deployment returns a deployment by name.
func (c *Catalog) Deployment(id string) (*Deployment, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	dep := c.doc.Deployments[i]
	return &dep, true
}

// DeploymentIDs returns deployment names in catalog order.
func (c *Catalog) DeploymentIDs() []string {
	ids := make([]string, 0, len(c.doc.Deployments))
	for _, dep := range c.doc.Deployments {
		ids = append(ids, dep.ID)
	}
	return ids
}

// DefaultDeployment is the deployment used when neither the environment nor the user picked one.
func (c *Catalog) DefaultDeployment() string {
	return c.doc.DefaultDeployment
}

// UI returns the branding defaults.
func (c *Catalog) UI() UIDefaults {
	return c.doc.UI
}
