package core

import (
	"context"
	"fmt"
	"strings"

	"gardenkeep/pkg/domain"
)

// ChoreInput carries the caller-supplied fields of a new chore.
type ChoreInput struct {
	PlantID       string      `json:"plant_id,omitempty"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	ChoreType     string      `json:"chore_type"`
	ScheduledDate domain.Date `json:"scheduled_date"`
}

func (in ChoreInput) chore() (domain.GardenChore, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.GardenChore{}, &domain.ValidationError{Field: "title", Reason: "is required"}
	}
	ct, ok := domain.ParseChoreType(in.ChoreType)
	if !ok {
		return domain.GardenChore{}, &domain.ValidationError{Field: "chore_type", Reason: fmt.Sprintf("unknown chore type %q", in.ChoreType)}
	}
	if in.ScheduledDate.IsZero() {
		return domain.GardenChore{}, &domain.ValidationError{Field: "scheduled_date", Reason: "is required"}
	}
	return domain.GardenChore{
		PlantID:       domain.OptionalString(in.PlantID),
		Title:         title,
		Description:   domain.OptionalString(in.Description),
		ChoreType:     ct,
		ScheduledDate: in.ScheduledDate,
	}, nil
}

// ListChores returns the user's chores in scheduled-date order.
func (s *Service) ListChores(ctx context.Context, user domain.UserID) ([]domain.GardenChore, error) {
	var chores []domain.GardenChore
	err := s.run(ctx, "list_chores", user, func(ctx context.Context) (string, error) {
		return "", s.view(ctx, user, func(v domain.TransactionView) error {
			var err error
			chores, err = v.ListChores()
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	return chores, nil
}

// CreateChore validates in and persists a new chore.
func (s *Service) CreateChore(ctx context.Context, user domain.UserID, in ChoreInput) (domain.GardenChore, error) {
	candidate, err := in.chore()
	if err != nil {
		return domain.GardenChore{}, err
	}
	var created domain.GardenChore
	err = s.run(ctx, "create_chore", user, func(ctx context.Context) (string, error) {
		err := s.update(ctx, user, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateChore(candidate)
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return domain.GardenChore{}, fmt.Errorf("create chore: %w", err)
	}
	return created, nil
}

// ToggleChore flips a chore's completion state. The read and the paired
// completed/completed_at write share one transaction.
func (s *Service) ToggleChore(ctx context.Context, user domain.UserID, id string) (domain.GardenChore, error) {
	var updated domain.GardenChore
	err := s.run(ctx, "toggle_chore", user, func(ctx context.Context) (string, error) {
		return id, s.update(ctx, user, func(tx domain.Transaction) error {
			current, err := tx.GetChore(id)
			if err != nil {
				return err
			}
			next := current.ToggleComplete(s.clock.Now())
			updated, err = tx.SetChoreCompletion(id, next.Completed, next.CompletedAt)
			return err
		})
	})
	if err != nil {
		return domain.GardenChore{}, fmt.Errorf("toggle chore: %w", err)
	}
	return updated, nil
}

// DeleteChore removes a chore by id.
func (s *Service) DeleteChore(ctx context.Context, user domain.UserID, id string) error {
	err := s.run(ctx, "delete_chore", user, func(ctx context.Context) (string, error) {
		return id, s.update(ctx, user, func(tx domain.Transaction) error {
			return tx.DeleteChore(id)
		})
	})
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

// ChoresOnDate returns the user's chores scheduled exactly on date.
func (s *Service) ChoresOnDate(ctx context.Context, user domain.UserID, date domain.Date) ([]domain.GardenChore, error) {
	chores, err := s.ListChores(ctx, user)
	if err != nil {
		return nil, err
	}
	return domain.ChoresOnDate(chores, date), nil
}

// UpcomingChores returns at most limit incomplete chores on or after from. A
// zero from means today.
func (s *Service) UpcomingChores(ctx context.Context, user domain.UserID, from domain.Date, limit int) ([]domain.GardenChore, error) {
	if from.IsZero() {
		from = s.Today()
	}
	chores, err := s.ListChores(ctx, user)
	if err != nil {
		return nil, err
	}
	return domain.Upcoming(chores, from, limit), nil
}
