package core

import (
	"context"
	"fmt"
	"strings"

	"gardenkeep/pkg/domain"
)

// PlantInput carries the caller-supplied fields of a new plant.
type PlantInput struct {
	Name          string       `json:"name"`
	BotanicalName string       `json:"botanical_name,omitempty"`
	SpeciesID     string       `json:"species_id,omitempty"`
	Location      string       `json:"location,omitempty"`
	DatePlanted   *domain.Date `json:"date_planted,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	ImageURL      string       `json:"image_url,omitempty"`
}

func (in PlantInput) plant() (domain.Plant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Plant{}, &domain.ValidationError{Field: "name", Reason: "is required"}
	}
	p := domain.Plant{
		Name:          name,
		BotanicalName: domain.OptionalString(in.BotanicalName),
		SpeciesID:     domain.OptionalString(in.SpeciesID),
		Location:      domain.OptionalString(in.Location),
		Notes:         domain.OptionalString(in.Notes),
		ImageURL:      domain.OptionalString(in.ImageURL),
	}
	if in.DatePlanted != nil && !in.DatePlanted.IsZero() {
		d := *in.DatePlanted
		p.DatePlanted = &d
	}
	return p, nil
}

// ListPlants returns the user's plants, newest first.
func (s *Service) ListPlants(ctx context.Context, user domain.UserID) ([]domain.Plant, error) {
	var plants []domain.Plant
	err := s.run(ctx, "list_plants", user, func(ctx context.Context) (string, error) {
		return "", s.view(ctx, user, func(v domain.TransactionView) error {
			var err error
			plants, err = v.ListPlants()
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	return plants, nil
}

// CreatePlant validates in and persists a new plant for user.
func (s *Service) CreatePlant(ctx context.Context, user domain.UserID, in PlantInput) (domain.Plant, error) {
	candidate, err := in.plant()
	if err != nil {
		return domain.Plant{}, err
	}
	var created domain.Plant
	err = s.run(ctx, "create_plant", user, func(ctx context.Context) (string, error) {
		err := s.update(ctx, user, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreatePlant(candidate)
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return domain.Plant{}, fmt.Errorf("create plant: %w", err)
	}
	return created, nil
}

// DeletePlant removes a plant together with its schedules. Chores that
// referenced it keep their history with the plant link cleared.
func (s *Service) DeletePlant(ctx context.Context, user domain.UserID, id string) error {
	err := s.run(ctx, "delete_plant", user, func(ctx context.Context) (string, error) {
		return id, s.update(ctx, user, func(tx domain.Transaction) error {
			return tx.DeletePlant(id)
		})
	})
	if err != nil {
		return fmt.Errorf("delete plant: %w", err)
	}
	return nil
}
