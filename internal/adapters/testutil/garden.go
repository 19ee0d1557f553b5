// Package testutil hosts helpers for adapter tests. It builds fully wired
// in-memory services so adapter packages never construct stores themselves.
package testutil

import (
	"context"
	"strings"
	"sync"

	"gardenkeep/internal/blob"
	"gardenkeep/internal/core"
	"gardenkeep/pkg/domain"
)

// Species is an in-process SpeciesGateway backed by a fixed catalogue.
type Species struct {
	mu      sync.Mutex
	catalog []domain.SpeciesSummary
	// Err, when set, is returned by every call.
	Err   error
	Calls int
}

// NewSpecies returns a gateway over catalog.
func NewSpecies(catalog ...domain.SpeciesSummary) *Species {
	return &Species{catalog: catalog}
}

// Search matches Query and ScientificName against scientific names and
// CommonName against common names, case-insensitively.
func (s *Species) Search(_ context.Context, q domain.SpeciesQuery) ([]domain.SpeciesSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	out := []domain.SpeciesSummary{}
	for _, sp := range s.catalog {
		if !contains(sp.ScientificName, q.Query) || !contains(sp.ScientificName, q.ScientificName) || !contains(domain.Deref(sp.CommonName), q.CommonName) {
			continue
		}
		out = append(out, sp)
	}
	if q.Offset >= len(out) {
		return []domain.SpeciesSummary{}, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// GetByID returns the catalogue entry with id or a wrapped domain.ErrNotFound.
func (s *Species) GetByID(_ context.Context, id string) (domain.SpeciesSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return domain.SpeciesSummary{}, s.Err
	}
	for _, sp := range s.catalog {
		if sp.ID == id || domain.Deref(sp.Slug) == id {
			return sp, nil
		}
	}
	return domain.SpeciesSummary{}, domain.NotFoundError{Entity: domain.EntitySpecies, ID: id}
}

func contains(haystack, needle string) bool {
	return needle == "" || strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// DefaultCatalog is a small species catalogue for tests.
func DefaultCatalog() []domain.SpeciesSummary {
	str := func(s string) *string { return &s }
	return []domain.SpeciesSummary{
		{ID: "1", ScientificName: "Ficus lyrata", CommonName: str("Fiddle-leaf fig"), Family: str("Moraceae"), Slug: str("ficus-lyrata")},
		{ID: "2", ScientificName: "Monstera deliciosa", CommonName: str("Swiss cheese plant"), Family: str("Araceae"), Slug: str("monstera-deliciosa")},
		{ID: "3", ScientificName: "Ocimum basilicum", CommonName: str("Basil"), Family: str("Lamiaceae"), Slug: str("ocimum-basilicum")},
	}
}

// Garden bundles an in-memory service with its collaborators.
type Garden struct {
	Service *core.Service
	Images  *core.ImageService
	Species *Species
	Blobs   blob.Store
}

// NewGarden wires an in-memory service, a memory blob store and the default
// species catalogue.
func NewGarden(opts ...core.Option) *Garden {
	species := NewSpecies(DefaultCatalog()...)
	svc := core.NewInMemoryService(append([]core.Option{core.WithSpeciesGateway(species)}, opts...)...)
	blobs := blob.NewMemory()
	return &Garden{Service: svc, Images: core.NewImageService(svc, blobs), Species: species, Blobs: blobs}
}

// Fixtures are the records Seed creates.
type Fixtures struct {
	Plant    domain.Plant
	Favorite domain.Favorite
	Chore    domain.GardenChore
	Schedule domain.PlantSchedule
}

// Seed creates one plant, favorite, chore and schedule for user, all dated
// around today.
func (g *Garden) Seed(ctx context.Context, user domain.UserID, today domain.Date) (Fixtures, error) {
	var f Fixtures
	var err error
	if f.Plant, err = g.Service.CreatePlant(ctx, user, core.PlantInput{Name: "Fiddle Leaf Fig", SpeciesID: "1", Location: "Living room"}); err != nil {
		return f, err
	}
	if f.Favorite, err = g.Service.AddFavorite(ctx, user, DefaultCatalog()[0]); err != nil {
		return f, err
	}
	if f.Chore, err = g.Service.CreateChore(ctx, user, core.ChoreInput{
		PlantID: f.Plant.ID, Title: "Water the fig", ChoreType: string(domain.ChoreWatering), ScheduledDate: today,
	}); err != nil {
		return f, err
	}
	f.Schedule, err = g.Service.CreateSchedule(ctx, user, core.ScheduleInput{
		PlantID: f.Plant.ID, ChoreType: string(domain.ChoreFertilizing), FrequencyDays: 14, NextDueDate: today,
	})
	return f, err
}
