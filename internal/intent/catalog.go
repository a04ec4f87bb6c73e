// Package intent declares the fixed set of intents the resolver can
// classify a user turn into: their parameter schemas, keyword rules,
// few-shot examples, and the static intent-to-capability mapping.
package intent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/internal/schema"
)

// FallbackIntent is the designated plain-conversation intent. Exhausting
// every resolver tier terminates here; it maps to zero capabilities.
const FallbackIntent = "chat"

// Example is one few-shot demonstration used by the guided-prompt tier.
type Example struct {
	// UserText is the example user message.
	UserText string `yaml:"user_text"`
	// Params is the parameter set the example should extract.
	Params map[string]any `yaml:"params"`
}

// Definition describes one intent.
type Definition struct {
	// Name is the intent name.
	Name string
	// Description documents the intent for the structured-extraction tool
	// schema and the guided prompt.
	Description string
	// Params is the declared parameter schema.
	Params *schema.Object
	// Keywords drive the rule tier: each case-insensitive substring hit
	// scores one point for this intent.
	Keywords []string
	// Capabilities is the ordered list of capability names this intent
	// selects for a turn.
	Capabilities []string
	// Examples are few-shot demonstrations for the guided-prompt tier.
	Examples []Example
}

// Catalog is an ordered, immutable-after-load set of intent definitions.
// Declaration order is the tie-break order for the rule tier.
type Catalog struct {
	defs   []*Definition
	byName map[string]*Definition
}

// NewCatalog builds a catalog from definitions in declaration order.
func NewCatalog(defs ...*Definition) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Definition, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("intent with empty name")
		}
		if _, exists := c.byName[def.Name]; exists {
			return nil, fmt.Errorf("intent %q declared twice", def.Name)
		}
		if def.Params == nil {
			def.Params = schema.New()
		}
		c.defs = append(c.defs, def)
		c.byName[def.Name] = def
	}
	if c.byName[FallbackIntent] == nil {
		return nil, fmt.Errorf("catalog must declare the %q fallback intent", FallbackIntent)
	}
	return c, nil
}

// Get returns the definition for an intent name, or nil.
func (c *Catalog) Get(name string) *Definition {
	return c.byName[name]
}

// List returns definitions in declaration order.
func (c *Catalog) List() []*Definition {
	return append([]*Definition(nil), c.defs...)
}

// Fallback returns the plain-conversation definition.
func (c *Catalog) Fallback() *Definition {
	return c.byName[FallbackIntent]
}

// overlay is the YAML shape of a catalog overlay file. An overlay extends
// existing intents; it cannot declare schemas, so new intents are rejected.
type overlay struct {
	Intents map[string]struct {
		Keywords     []string  `yaml:"keywords"`
		Capabilities []string  `yaml:"capabilities"`
		Examples     []Example `yaml:"examples"`
	} `yaml:"intents"`
}

// LoadOverlay merges a YAML overlay file into the catalog: extra keywords
// and examples are appended, a non-empty capabilities list replaces the
// built-in mapping. Unknown intent names are an error so that typos fail
// loudly at startup.
func (c *Catalog) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read intent overlay: %w", err)
	}

	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse intent overlay: %w", err)
	}

	for name, patch := range ov.Intents {
		def := c.byName[name]
		if def == nil {
			return fmt.Errorf("intent overlay references unknown intent %q", name)
		}
		def.Keywords = append(def.Keywords, patch.Keywords...)
		def.Examples = append(def.Examples, patch.Examples...)
		if len(patch.Capabilities) > 0 {
			def.Capabilities = patch.Capabilities
		}
	}

	return nil
}
