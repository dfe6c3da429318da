// Package recipe provides recipe source implementations.
package recipe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// Compile-time interface check.
var _ domain.RecipeSource = (*MemorySource)(nil)

// Option configures a MemorySource.
type Option func(*MemorySource)

// WithRecipes replaces the built-in recipes.
func WithRecipes(recipes ...*domain.Recipe) Option {
	return func(s *MemorySource) { s.seedWith = recipes }
}

// MemorySource holds recipes in memory. Safe for concurrent reads.
type MemorySource struct {
	mu       sync.RWMutex
	recipes  map[string]*domain.Recipe
	log      *logger.Logger
	seedWith []*domain.Recipe
}

// NewMemorySource creates a recipe source preloaded with built-in recipes.
// Step IDs are namespaced by recipe ID so they stay unique across recipes.
func NewMemorySource(log *logger.Logger, opts ...Option) *MemorySource {
	src := &MemorySource{
		recipes: make(map[string]*domain.Recipe),
		log:     log.Named("recipe"),
	}
	for _, opt := range opts {
		opt(src)
	}
	if src.seedWith == nil {
		src.seedWith = builtin()
	}
	for _, r := range src.seedWith {
		src.add(r)
	}
	src.seedWith = nil
	src.log.Debug("seeded %d recipes", len(src.recipes))
	return src
}

func (s *MemorySource) add(r *domain.Recipe) {
	for i := range r.Steps {
		if r.Steps[i].ID == "" {
			r.Steps[i].ID = fmt.Sprintf("%d", i+1)
		}
		if !strings.HasPrefix(r.Steps[i].ID, r.ID+"/") {
			r.Steps[i].ID = r.ID + "/" + r.Steps[i].ID
		}
	}
	s.recipes[r.ID] = r
}

// List returns summaries of all available recipes, sorted by name.
func (s *MemorySource) List(ctx context.Context) ([]domain.RecipeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RecipeSummary, 0, len(s.recipes))
	for _, r := range s.recipes {
		out = append(out, summarize(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns a recipe by ID.
func (s *MemorySource) Get(ctx context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		s.log.Debug("recipe not found: %s", id)
		return nil, fmt.Errorf("recipe %q: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

// Search returns recipes whose name, description or tags contain query.
func (s *MemorySource) Search(ctx context.Context, query string) ([]domain.RecipeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	s.log.Debug("searching recipes for: %s", q)

	var out []domain.RecipeSummary
	for _, r := range s.recipes {
		if matches(r, q) {
			out = append(out, summarize(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func summarize(r *domain.Recipe) domain.RecipeSummary {
	return domain.RecipeSummary{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Tags:        r.Tags,
		StepCount:   len(r.Steps),
	}
}

func matches(r *domain.Recipe, query string) bool {
	if strings.Contains(strings.ToLower(r.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Description), query) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
