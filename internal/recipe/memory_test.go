package recipe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

func TestMemorySourceList(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	src := NewMemorySource(log)
	ctx := context.Background()

	recipes, err := src.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recipes) < 3 {
		t.Fatalf("expected at least 3 recipes, got %d", len(recipes))
	}
	for i := 1; i < len(recipes); i++ {
		if recipes[i-1].Name > recipes[i].Name {
			t.Fatalf("list not sorted: %q before %q", recipes[i-1].Name, recipes[i].Name)
		}
	}
	for _, r := range recipes {
		if r.StepCount == 0 {
			t.Errorf("%s: zero step count", r.ID)
		}
	}
}

func TestMemorySourceGet(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	src := NewMemorySource(log)
	ctx := context.Background()

	tests := []struct {
		id      string
		wantErr error
	}{
		{"oyakodon", nil},
		{"chicken-alfredo", nil},
		{"vegetable-stir-fry", nil},
		{"nonexistent", domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r, err := src.Get(ctx, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.ID != tt.id {
				t.Fatalf("expected ID %s, got %s", tt.id, r.ID)
			}
			seq := r.Sequence()
			if seq.Len() == 0 {
				t.Fatal("recipe has no steps")
			}
			for i := 0; i < seq.Len(); i++ {
				s, _ := seq.At(i)
				if s.NarrationText == "" {
					t.Errorf("step %d has no narration", i)
				}
			}
		})
	}
}

func TestStepIDsAreGloballyUnique(t *testing.T) {
	src := NewMemorySource(logger.New(logger.LevelOff, nil))
	ctx := context.Background()
	list, _ := src.List(ctx)

	seen := make(map[string]bool)
	for _, sum := range list {
		r, err := src.Get(ctx, sum.ID)
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range r.Steps {
			if !strings.HasPrefix(s.ID, r.ID+"/") {
				t.Errorf("step %q not namespaced by %q", s.ID, r.ID)
			}
			if seen[s.ID] {
				t.Errorf("duplicate step id %q", s.ID)
			}
			seen[s.ID] = true
		}
	}
}

func TestWithRecipesKeepsExplicitIDs(t *testing.T) {
	src := NewMemorySource(logger.New(logger.LevelOff, nil), WithRecipes(&domain.Recipe{
		ID:   "toast",
		Name: "Toast",
		Steps: []domain.Step{
			{ID: "slice", NarrationText: "Slice the bread."},
			{NarrationText: "Toast it."},
		},
	}))

	r, err := src.Get(context.Background(), "toast")
	if err != nil {
		t.Fatal(err)
	}
	if r.Steps[0].ID != "toast/slice" || r.Steps[1].ID != "toast/2" {
		t.Fatalf("ids = %q, %q", r.Steps[0].ID, r.Steps[1].ID)
	}
	if list, _ := src.List(context.Background()); len(list) != 1 {
		t.Fatalf("builtin recipes should be replaced, got %d", len(list))
	}
}

func TestMemorySourceSearch(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	src := NewMemorySource(log)
	ctx := context.Background()

	tests := []struct {
		query    string
		minCount int
	}{
		{"chicken", 2},
		{"pasta", 1},
		{"vegan", 1},
		{"JAPANESE", 1},
		{"nonexistent-query-xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := src.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(results) < tt.minCount {
				t.Fatalf("query=%q: expected at least %d results, got %d", tt.query, tt.minCount, len(results))
			}
		})
	}
}
