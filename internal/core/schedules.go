package core

import (
	"context"
	"fmt"

	"gardenkeep/pkg/domain"
)

// ScheduleInput carries the caller-supplied fields of a recurrence template.
// NextDueDate is derived when LastCompleted is given. Active defaults to true.
type ScheduleInput struct {
	PlantID       string       `json:"plant_id"`
	ChoreType     string       `json:"chore_type"`
	FrequencyDays int          `json:"frequency_days"`
	LastCompleted *domain.Date `json:"last_completed,omitempty"`
	NextDueDate   domain.Date  `json:"next_due_date"`
	Notes         string       `json:"notes,omitempty"`
	Active        *bool        `json:"active,omitempty"`
}

func (in ScheduleInput) schedule() (domain.PlantSchedule, error) {
	ct, _ := domain.ParseChoreType(in.ChoreType)
	s := domain.PlantSchedule{
		PlantID:       in.PlantID,
		ChoreType:     ct,
		FrequencyDays: in.FrequencyDays,
		NextDueDate:   in.NextDueDate,
		Notes:         domain.OptionalString(in.Notes),
		Active:        true,
	}
	if in.LastCompleted != nil && !in.LastCompleted.IsZero() {
		d := *in.LastCompleted
		s.LastCompleted = &d
	}
	if in.Active != nil {
		s.Active = *in.Active
	}
	if err := s.Validate(); err != nil {
		return domain.PlantSchedule{}, err
	}
	return s.Normalize(), nil
}

// ListSchedules returns the user's schedules ordered by next due date.
func (s *Service) ListSchedules(ctx context.Context, user domain.UserID) ([]domain.PlantSchedule, error) {
	var schedules []domain.PlantSchedule
	err := s.run(ctx, "list_schedules", user, func(ctx context.Context) (string, error) {
		return "", s.view(ctx, user, func(v domain.TransactionView) error {
			var err error
			schedules, err = v.ListSchedules()
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// CreateSchedule validates in and persists a new schedule.
func (s *Service) CreateSchedule(ctx context.Context, user domain.UserID, in ScheduleInput) (domain.PlantSchedule, error) {
	candidate, err := in.schedule()
	if err != nil {
		return domain.PlantSchedule{}, err
	}
	var created domain.PlantSchedule
	err = s.run(ctx, "create_schedule", user, func(ctx context.Context) (string, error) {
		err := s.update(ctx, user, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateSchedule(candidate)
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return domain.PlantSchedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return created, nil
}

// CompleteSchedule records a completion on date (today when zero) and moves
// the next due date to date + frequency.
func (s *Service) CompleteSchedule(ctx context.Context, user domain.UserID, id string, date domain.Date) (domain.PlantSchedule, error) {
	if date.IsZero() {
		date = s.Today()
	}
	var updated domain.PlantSchedule
	err := s.run(ctx, "complete_schedule", user, func(ctx context.Context) (string, error) {
		return id, s.update(ctx, user, func(tx domain.Transaction) error {
			current, err := tx.GetSchedule(id)
			if err != nil {
				return err
			}
			updated, err = tx.UpdateSchedule(current.MarkCompleted(date))
			return err
		})
	})
	if err != nil {
		return domain.PlantSchedule{}, fmt.Errorf("complete schedule: %w", err)
	}
	return updated, nil
}

// DeleteSchedule removes a schedule by id.
func (s *Service) DeleteSchedule(ctx context.Context, user domain.UserID, id string) error {
	err := s.run(ctx, "delete_schedule", user, func(ctx context.Context) (string, error) {
		return id, s.update(ctx, user, func(tx domain.Transaction) error {
			return tx.DeleteSchedule(id)
		})
	})
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
