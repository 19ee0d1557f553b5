package core

import (
	"context"
	"fmt"
	"strings"

	"gardenkeep/pkg/domain"
)

// BotanicalTokenSetting names the credential the species gateway needs.
const BotanicalTokenSetting = "BOTANICAL_API_TOKEN"

func (s *Service) gateway() (SpeciesGateway, error) {
	if s.species == nil {
		return nil, &domain.ConfigError{Setting: BotanicalTokenSetting}
	}
	return s.species, nil
}

// SearchSpecies queries the botanical gateway. No matches yields an empty,
// non-nil slice.
func (s *Service) SearchSpecies(ctx context.Context, q domain.SpeciesQuery) ([]domain.SpeciesSummary, error) {
	if q.Limit < 0 {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if q.Offset < 0 {
		return nil, &domain.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	gw, err := s.gateway()
	if err != nil {
		return nil, err
	}
	var results []domain.SpeciesSummary
	err = s.run(ctx, "search_species", "", func(ctx context.Context) (string, error) {
		var err error
		results, err = gw.Search(ctx, q)
		return "", err
	})
	if err != nil {
		return nil, fmt.Errorf("search species: %w", err)
	}
	if results == nil {
		results = []domain.SpeciesSummary{}
	}
	return results, nil
}

// GetSpecies fetches one species by numeric id or slug.
func (s *Service) GetSpecies(ctx context.Context, id string) (domain.SpeciesSummary, error) {
	id = strings.TrimSpace(id)
	if err := domain.ValidateSpeciesID(id); err != nil {
		return domain.SpeciesSummary{}, err
	}
	gw, err := s.gateway()
	if err != nil {
		return domain.SpeciesSummary{}, err
	}
	var species domain.SpeciesSummary
	err = s.run(ctx, "get_species", "", func(ctx context.Context) (string, error) {
		var err error
		species, err = gw.GetByID(ctx, id)
		return id, err
	})
	if err != nil {
		return domain.SpeciesSummary{}, fmt.Errorf("get species %s: %w", id, err)
	}
	return species, nil
}
