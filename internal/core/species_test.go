package core

import (
	"context"
	"errors"
	"testing"

	"gardenkeep/pkg/domain"
)

type stubGateway struct {
	results []domain.SpeciesSummary
	byID    map[string]domain.SpeciesSummary
	err     error
	calls   int
	lastQ   domain.SpeciesQuery
}

func (g *stubGateway) Search(_ context.Context, q domain.SpeciesQuery) ([]domain.SpeciesSummary, error) {
	g.calls++
	g.lastQ = q
	return g.results, g.err
}

func (g *stubGateway) GetByID(_ context.Context, id string) (domain.SpeciesSummary, error) {
	g.calls++
	if g.err != nil {
		return domain.SpeciesSummary{}, g.err
	}
	s, ok := g.byID[id]
	if !ok {
		return domain.SpeciesSummary{}, domain.ErrNotFound
	}
	return s, nil
}

func TestSpeciesWithoutGatewayIsConfigError(t *testing.T) {
	svc := NewInMemoryService()
	_, err := svc.SearchSpecies(context.Background(), domain.SpeciesQuery{Query: "ficus"})
	var cfg *domain.ConfigError
	if !errors.As(err, &cfg) || cfg.Setting != BotanicalTokenSetting {
		t.Fatalf("expected config error naming the token, got %v", err)
	}
	if _, err := svc.GetSpecies(context.Background(), "123"); !domain.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestSearchSpeciesEmptyResult(t *testing.T) {
	gw := &stubGateway{}
	svc := NewInMemoryService(WithSpeciesGateway(gw))
	results, err := svc.SearchSpecies(context.Background(), domain.SpeciesQuery{Family: "Moraceae", Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", results)
	}
	if gw.lastQ.Family != "Moraceae" || gw.lastQ.Limit != 5 {
		t.Fatalf("query not forwarded: %+v", gw.lastQ)
	}
	if _, err := svc.SearchSpecies(context.Background(), domain.SpeciesQuery{Limit: -1}); !domain.IsValidation(err) {
		t.Fatalf("negative limit should be rejected, got %v", err)
	}
}

func TestGetSpeciesValidatesBeforeGateway(t *testing.T) {
	gw := &stubGateway{byID: map[string]domain.SpeciesSummary{"ficus-lyrata": {ID: "1", ScientificName: "Ficus lyrata"}}}
	svc := NewInMemoryService(WithSpeciesGateway(gw))
	if _, err := svc.GetSpecies(context.Background(), "../etc"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway must not be called for malformed ids")
	}
	s, err := svc.GetSpecies(context.Background(), "ficus-lyrata")
	if err != nil || s.ScientificName != "Ficus lyrata" {
		t.Fatalf("unexpected species %+v (%v)", s, err)
	}
	if _, err := svc.GetSpecies(context.Background(), "999"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
