// Package domain defines the persistent garden entities, value types and the
// pure calendar and recurrence rules used by gardenkeep.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the garden domain.
type EntityType string

// Supported entity type identifiers used in audit entries and errors.
const (
	EntityPlant    EntityType = "plant"
	EntityFavorite EntityType = "favorite"
	EntityChore    EntityType = "garden_chore"
	EntitySchedule EntityType = "plant_schedule"
	EntitySpecies  EntityType = "species"
	EntityImage    EntityType = "image"
)

// UserID is the anonymous owner identifier every record is scoped by.
type UserID string

// NullUserID is handed out when no durable client storage is available. It
// never matches an owner policy.
const NullUserID UserID = "00000000-0000-0000-0000-000000000000"

// IsNull reports whether id is empty or the sentinel identifier.
func (id UserID) IsNull() bool {
	return strings.TrimSpace(string(id)) == "" || id == NullUserID
}

func (id UserID) String() string { return string(id) }

// Plant is a plant in a user's collection.
type Plant struct {
	ID            string    `json:"id"`
	UserID        UserID    `json:"user_id"`
	Name          string    `json:"name"`
	BotanicalName *string   `json:"botanical_name,omitempty"`
	SpeciesID     *string   `json:"species_id,omitempty"`
	Location      *string   `json:"location,omitempty"`
	DatePlanted   *Date     `json:"date_planted,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	ImageURL      *string   `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Favorite is a bookmarked botanical species.
type Favorite struct {
	ID            string    `json:"id"`
	UserID        UserID    `json:"user_id"`
	SpeciesID     string    `json:"species_id"`
	BotanicalName string    `json:"botanical_name"`
	CommonName    *string   `json:"common_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// GardenChore is a single scheduled garden-care task.
type GardenChore struct {
	ID            string     `json:"id"`
	UserID        UserID     `json:"user_id"`
	PlantID       *string    `json:"plant_id,omitempty"`
	Title         string     `json:"title"`
	Description   *string    `json:"description,omitempty"`
	ChoreType     ChoreType  `json:"chore_type"`
	ScheduledDate Date       `json:"scheduled_date"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PlantSchedule is a recurrence template for a plant's chores.
type PlantSchedule struct {
	ID            string    `json:"id"`
	UserID        UserID    `json:"user_id"`
	PlantID       string    `json:"plant_id"`
	ChoreType     ChoreType `json:"chore_type"`
	FrequencyDays int       `json:"frequency_days"`
	LastCompleted *Date     `json:"last_completed,omitempty"`
	NextDueDate   Date      `json:"next_due_date"`
	Notes         *string   `json:"notes,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SpeciesSummary is the normalized botanical record returned by the species
// gateway. It is never persisted.
type SpeciesSummary struct {
	ID                string  `json:"id"`
	ScientificName    string  `json:"scientific_name"`
	CommonName        *string `json:"common_name,omitempty"`
	Family            *string `json:"family,omitempty"`
	FamilyCommonName  *string `json:"family_common_name,omitempty"`
	Genus             *string `json:"genus,omitempty"`
	ImageURL          *string `json:"image_url,omitempty"`
	Year              *int    `json:"year,omitempty"`
	Author            *string `json:"author,omitempty"`
	Bibliography      *string `json:"bibliography,omitempty"`
	Status            *string `json:"status,omitempty"`
	Rank              *string `json:"rank,omitempty"`
	Slug              *string `json:"slug,omitempty"`
	Description       *string `json:"description,omitempty"`
	CareInstructions  *string `json:"care_instructions,omitempty"`
	WateringFrequency *string `json:"watering_frequency,omitempty"`
	LightRequirements *string `json:"light_requirements,omitempty"`
	TemperatureRange  *string `json:"temperature_range,omitempty"`
}

// OptionalString trims s and returns nil when nothing is left.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
