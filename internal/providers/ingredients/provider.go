// Package ingredients implements the ingredient classification provider, a
// thin lookup-table collaborator registered at startup.
package ingredients

import (
	"context"
	"errors"
	"strings"

	"github.com/vitralabs/maestro/pkg/protocol"
)

const CapabilityClassify = "classify-ingredients"

// classes maps normalized ingredient names to their dietary class.
var classes = map[string]string{
	"water":        "vegan",
	"sugar":        "vegan",
	"salt":         "vegan",
	"wheat flour":  "vegan",
	"soy lecithin": "vegan",
	"palm oil":     "vegan",
	"milk":         "dairy",
	"whey":         "dairy",
	"butter":       "dairy",
	"lactose":      "dairy",
	"egg":          "egg",
	"egg white":    "egg",
	"honey":        "animal-derived",
	"gelatin":      "animal-derived",
	"carmine":      "animal-derived",
	"lard":         "animal-derived",
}

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) ID() string      { return "ingredient-classifier" }
func (p *Provider) Name() string    { return "Ingredient Classifier" }
func (p *Provider) Version() string { return "1.2.0" }

func (p *Provider) Capabilities() []protocol.Capability {
	return []protocol.Capability{
		{
			Name:        CapabilityClassify,
			Description: "Classify a list of ingredients into dietary classes",
			Input:       `{"ingredients": ["milk", "sugar", ...]}`,
			Output:      `{"classifications": {...}, "unknown": [...], "contains_animal_products": bool}`,
		},
	}
}

func (p *Provider) Process(_ context.Context, input map[string]any) (map[string]any, error) {
	raw, ok := input["ingredients"].([]any)
	if !ok {
		return nil, errors.New("input field 'ingredients' must be a list")
	}

	classifications := make(map[string]any, len(raw))
	unknown := make([]any, 0)
	containsAnimal := false

	for _, item := range raw {
		name, ok := item.(string)
		if !ok {
			return nil, errors.New("ingredients must be strings")
		}

		class, found := classes[strings.ToLower(strings.TrimSpace(name))]
		if !found {
			unknown = append(unknown, name)

			continue
		}

		classifications[name] = class

		if class != "vegan" {
			containsAnimal = true
		}
	}

	return map[string]any{
		"classifications":          classifications,
		"unknown":                  unknown,
		"contains_animal_products": containsAnimal,
	}, nil
}
