package testutil

import (
	"github.com/HerbHall/faceanalyzer/pkg/catalog"
)

// NewService returns a catalog Service named "Test Service" with no
// descriptive fields. Apply options to fill in what the test needs.
func NewService(opts ...func(*catalog.Service)) catalog.Service {
	s := catalog.Service{Name: "Test Service"}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithName sets the service name.
func WithName(name string) func(*catalog.Service) {
	return func(s *catalog.Service) { s.Name = name }
}

// WithDescription sets the service description.
func WithDescription(d string) func(*catalog.Service) {
	return func(s *catalog.Service) { s.Description = d }
}

// WithProblems sets the problems the service treats.
func WithProblems(problems ...string) func(*catalog.Service) {
	return func(s *catalog.Service) { s.ProblemsTreated = problems }
}

// WithEnhancements sets the enhancements the service offers.
func WithEnhancements(e ...string) func(*catalog.Service) {
	return func(s *catalog.Service) { s.Enhancements = e }
}

// NewCatalog builds a single-category catalog from services.
func NewCatalog(category string, services ...catalog.Service) *catalog.Catalog {
	return catalog.New(catalog.Category{Name: category, Services: services})
}
