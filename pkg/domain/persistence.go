package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to one owner's rows.
type TransactionView interface {
	ListPlants() ([]Plant, error)
	ListFavorites() ([]Favorite, error)
	ListChores() ([]GardenChore, error)
	GetChore(id string) (GardenChore, error)
	ListSchedules() ([]PlantSchedule, error)
	GetSchedule(id string) (PlantSchedule, error)
}

// Transaction is a mutable unit of work scoped to a single owner. Rows passed
// in have their UserID overwritten with the transaction's owner; IDs and
// timestamps are assigned by the store.
type Transaction interface {
	TransactionView
	CreatePlant(Plant) (Plant, error)
	DeletePlant(id string) error
	CreateFavorite(Favorite) (Favorite, error)
	DeleteFavorite(id string) error
	CreateChore(GardenChore) (GardenChore, error)
	// SetChoreCompletion writes completed and completedAt together.
	SetChoreCompletion(id string, completed bool, completedAt *time.Time) (GardenChore, error)
	DeleteChore(id string) error
	CreateSchedule(PlantSchedule) (PlantSchedule, error)
	UpdateSchedule(PlantSchedule) (PlantSchedule, error)
	DeleteSchedule(id string) error
}

// PersistentStore is the abstraction over the hosted relational store. Owner
// scoping is the store's responsibility; the sentinel NullUserID is rejected
// with ErrAccessDenied.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, owner UserID, fn func(Transaction) error) error
	View(ctx context.Context, owner UserID, fn func(TransactionView) error) error
	// Tables reports which of the named tables exist.
	Tables(ctx context.Context, names ...string) (map[string]bool, error)
	Close() error
}

// TableNames lists the tables every backend provides.
var TableNames = []string{"plants", "favorites", "garden_chores", "plant_schedules"}
