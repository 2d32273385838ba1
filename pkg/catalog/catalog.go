// Package catalog defines the service catalog the recommender ranks against
// and loads it from YAML or JSON documents.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidServiceRecord is returned when a catalog entry is missing a
// required field.
var ErrInvalidServiceRecord = errors.New("invalid service record")

// Service is a single treatment offered by the clinic.
type Service struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description,omitempty" yaml:"description"`
	ProblemsTreated []string `json:"problems_treated,omitempty" yaml:"problems_treated"`
	Enhancements    []string `json:"enhancements,omitempty" yaml:"enhancements"`
}

// Category groups services under a display key. The key has no effect on
// scoring; it only fixes traversal order.
type Category struct {
	Name     string    `json:"name"`
	Services []Service `json:"services"`
}

// Catalog is an ordered, read-only collection of categories.
type Catalog struct {
	categories []Category
}

// New builds a Catalog from categories in the given order.
func New(categories ...Category) *Catalog {
	cp := make([]Category, len(categories))
	copy(cp, categories)
	return &Catalog{categories: cp}
}

// Categories returns a copy of the categories in catalog order.
func (c *Catalog) Categories() []Category {
	if c == nil {
		return nil
	}
	cp := make([]Category, len(c.categories))
	copy(cp, c.categories)
	return cp
}

// Services returns every service flattened in traversal order: categories in
// insertion order, then services in listed order.
func (c *Catalog) Services() []Service {
	if c == nil {
		return nil
	}
	out := make([]Service, 0, c.Len())
	for i := range c.categories {
		out = append(out, c.categories[i].Services...)
	}
	return out
}

// Len returns the total number of services.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for i := range c.categories {
		n += len(c.categories[i].Services)
	}
	return n
}

// Lookup finds a service by name, ignoring case and surrounding whitespace.
func (c *Catalog) Lookup(name string) (Service, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if c == nil || want == "" {
		return Service{}, false
	}
	for i := range c.categories {
		for _, s := range c.categories[i].Services {
			if strings.ToLower(strings.TrimSpace(s.Name)) == want {
				return s, true
			}
		}
	}
	return Service{}, false
}

// Validate checks that every service carries a name.
func (c *Catalog) Validate() error {
	if c == nil {
		return nil
	}
	for i := range c.categories {
		for j := range c.categories[i].Services {
			if err := c.categories[i].Services[j].Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", c.categories[i].Name, j, err)
			}
		}
	}
	return nil
}

// Validate reports ErrInvalidServiceRecord when the name is blank.
func (s Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidServiceRecord)
	}
	return nil
}
