package messages

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultCatalog []byte

// Catalog resolves dotted message keys to templates with {placeholder} slots
type Catalog struct {
	templates map[string]string
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("messages: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load returns the built-in catalog overlaid with the YAML file at path
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	overrides, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing messages %s: %w", path, err)
	}
	for k, v := range overrides.templates {
		c.templates[k] = v
	}
	return c, nil
}

func parse(data []byte) (*Catalog, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	c := &Catalog{templates: make(map[string]string)}
	flatten("", tree, c.templates)
	return c, nil
}

// flatten turns nested YAML maps into dotted keys
func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Render fills the template for key. Unknown keys render as the key itself
// so a missing translation is visible rather than silent.
func (c *Catalog) Render(key string, placeholders map[string]string) string {
	tpl, ok := c.templates[key]
	if !ok {
		return key
	}
	if len(placeholders) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(placeholders)*2)
	for k, v := range placeholders {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// Has reports whether key is defined
func (c *Catalog) Has(key string) bool {
	_, ok := c.templates[key]
	return ok
}
