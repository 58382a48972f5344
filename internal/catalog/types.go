package catalog

import "gopkg.in/yaml.v3"

// Deployment describes one Azure OpenAI deployment the client may select.
type Deployment struct {
	// ID is the deployment name (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	DisplayName    string `yaml:"display_name" json:"display_name"`
	ContextWindow  int    `yaml:"context_window" json:"context_window"`
	MaxOutput      int    `yaml:"max_output" json:"max_output"`
	SupportsVision bool   `yaml:"supports_vision" json:"supports_vision"`
}

// UIDefaults are the branding values used when the environment sets none.
type UIDefaults struct {
	Title           string `yaml:"title"`
	ChatTitle       string `yaml:"chat_title"`
	ChatDescription string `yaml:"chat_description"`
	HeaderTitle     string `yaml:"header_title"`
	PageTabTitle    string `yaml:"page_tab_title"`
}

// document is the catalog file layout.
type document struct {
	DefaultDeployment string       `yaml:"default_deployment"`
	Deployments       []Deployment `yaml:"-"`
	UI                UIDefaults   `yaml:"ui"`
}

// UnmarshalYAML keeps deployments in file order.
func (d *document) UnmarshalYAML(node *yaml.Node) error {
	type plain struct {
		DefaultDeployment string                `yaml:"default_deployment"`
		Deployments       map[string]Deployment `yaml:"deployments"`
		UI                UIDefaults            `yaml:"ui"`
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	d.DefaultDeployment = p.DefaultDeployment
	d.UI = p.UI

	// node.Content alternates key, value.
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "deployments" {
			continue
		}
		entries := node.Content[i+1]
		for j := 0; j+1 < len(entries.Content); j += 2 {
			id := entries.Content[j].Value
			if dep, ok := p.Deployments[id]; ok {
				dep.ID = id
				d.Deployments = append(d.Deployments, dep)
			}
		}
		break
	}
	return nil
}
