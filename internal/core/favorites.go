package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gardenkeep/pkg/domain"
)

// ListFavorites returns the user's favorites, newest first.
func (s *Service) ListFavorites(ctx context.Context, user domain.UserID) ([]domain.Favorite, error) {
	var favorites []domain.Favorite
	err := s.run(ctx, "list_favorites", user, func(ctx context.Context) (string, error) {
		return "", s.view(ctx, user, func(v domain.TransactionView) error {
			var err error
			favorites, err = v.ListFavorites()
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favorites, nil
}

// AddFavorite bookmarks species for user. A duplicate returns
// domain.ErrAlreadyFavorited unwrapped so callers can treat it as benign.
func (s *Service) AddFavorite(ctx context.Context, user domain.UserID, species domain.SpeciesSummary) (domain.Favorite, error) {
	speciesID := strings.TrimSpace(species.ID)
	if speciesID == "" {
		return domain.Favorite{}, &domain.ValidationError{Field: "species_id", Reason: "is required"}
	}
	name := strings.TrimSpace(species.ScientificName)
	if name == "" {
		return domain.Favorite{}, &domain.ValidationError{Field: "botanical_name", Reason: "is required"}
	}
	candidate := domain.Favorite{
		SpeciesID:     speciesID,
		BotanicalName: name,
		CommonName:    domain.OptionalString(domain.Deref(species.CommonName)),
	}

	var created domain.Favorite
	err := s.run(ctx, "add_favorite", user, func(ctx context.Context) (string, error) {
		err := s.update(ctx, user, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateFavorite(candidate)
			return err
		})
		return created.ID, err
	})
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, domain.ErrAlreadyFavorited):
		return domain.Favorite{}, domain.ErrAlreadyFavorited
	default:
		return domain.Favorite{}, fmt.Errorf("add favorite: %w", err)
	}
}

// RemoveFavorite deletes a favorite by id.
func (s *Service) RemoveFavorite(ctx context.Context, user domain.UserID, id string) error {
	err := s.run(ctx, "remove_favorite", user, func(ctx context.Context) (string, error) {
		return id, s.update(ctx, user, func(tx domain.Transaction) error {
			return tx.DeleteFavorite(id)
		})
	})
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}
