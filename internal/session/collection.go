package session

import (
	"context"
	"errors"
	"slices"
	"strings"

	"gardenkeep/internal/core"
	"gardenkeep/pkg/domain"
)

// PlantAPI is the server surface the collection view needs.
type PlantAPI interface {
	ListPlants(ctx context.Context) ([]domain.Plant, error)
	CreatePlant(ctx context.Context, in core.PlantInput) (domain.Plant, error)
	DeletePlant(ctx context.Context, id string) error
}

// Collection is the local list of the user's plants, newest first.
type Collection struct {
	api    PlantAPI
	plants []domain.Plant
}

// NewCollection returns an empty collection backed by api.
func NewCollection(api PlantAPI) *Collection {
	return &Collection{api: api}
}

// Load replaces local state with the server's list.
func (c *Collection) Load(ctx context.Context) error {
	plants, err := c.api.ListPlants(ctx)
	if err != nil {
		return err
	}
	c.plants = plants
	return nil
}

// Plants returns a copy of the local list.
func (c *Collection) Plants() []domain.Plant {
	return slices.Clone(c.plants)
}

// Add creates a plant. A blank name is rejected without calling the server.
func (c *Collection) Add(ctx context.Context, in core.PlantInput) Notice {
	if strings.TrimSpace(in.Name) == "" {
		return NoticeFor(&domain.ValidationError{Field: "name", Reason: "is required"})
	}
	plant, err := c.api.CreatePlant(ctx, in)
	if err != nil {
		return NoticeFor(err)
	}
	c.plants = append([]domain.Plant{plant}, c.plants...)
	return success(msgPlantAdded)
}

// AddSpecies adds a search result to the collection, named after its common
// name when one exists. Species already in the local list are not re-added.
func (c *Collection) AddSpecies(ctx context.Context, sp domain.SpeciesSummary) Notice {
	if slices.ContainsFunc(c.plants, func(p domain.Plant) bool { return domain.Deref(p.SpeciesID) == sp.ID }) {
		return info(msgAlreadyCollected)
	}
	name := domain.Deref(sp.CommonName)
	if name == "" {
		name = sp.ScientificName
	}
	n := c.Add(ctx, core.PlantInput{
		Name:          name,
		BotanicalName: sp.ScientificName,
		SpeciesID:     sp.ID,
		ImageURL:      domain.Deref(sp.ImageURL),
	})
	if n.Level == NoticeSuccess {
		n.Message = msgSpeciesCollected
	}
	return n
}

// Remove deletes a plant. A plant the server no longer has is dropped locally
// as well.
func (c *Collection) Remove(ctx context.Context, id string) Notice {
	if err := c.api.DeletePlant(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return NoticeFor(err)
	}
	c.plants = slices.DeleteFunc(c.plants, func(p domain.Plant) bool { return p.ID == id })
	return success(msgPlantRemoved)
}
