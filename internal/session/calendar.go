package session

import (
	"context"
	"slices"
	"strings"

	"gardenkeep/internal/core"
	"gardenkeep/pkg/domain"
)

// CalendarAPI is the server surface the calendar view needs.
type CalendarAPI interface {
	ListChores(ctx context.Context) ([]domain.GardenChore, error)
	CreateChore(ctx context.Context, in core.ChoreInput) (domain.GardenChore, error)
	ToggleChore(ctx context.Context, id string) (domain.GardenChore, error)
	DeleteChore(ctx context.Context, id string) error
}

// Calendar holds the user's chores and derives the day and upcoming views
// from them locally.
type Calendar struct {
	api    CalendarAPI
	chores []domain.GardenChore
}

// NewCalendar returns an empty Calendar backed by api.
func NewCalendar(api CalendarAPI) *Calendar {
	return &Calendar{api: api}
}

// Load replaces the local chores with the server's.
func (c *Calendar) Load(ctx context.Context) error {
	chores, err := c.api.ListChores(ctx)
	if err != nil {
		return err
	}
	c.chores = chores
	return nil
}

// Chores returns a copy of the local chores.
func (c *Calendar) Chores() []domain.GardenChore {
	return slices.Clone(c.chores)
}

// On returns the chores scheduled for date in list order.
func (c *Calendar) On(date domain.Date) []domain.GardenChore {
	return domain.ChoresOnDate(c.chores, date)
}

// Upcoming returns at most limit incomplete chores on or after from.
func (c *Calendar) Upcoming(from domain.Date, limit int) []domain.GardenChore {
	return domain.Upcoming(c.chores, from, limit)
}

// Add creates a chore. A blank title is rejected without calling the server.
func (c *Calendar) Add(ctx context.Context, in core.ChoreInput) Notice {
	if strings.TrimSpace(in.Title) == "" {
		return NoticeFor(&domain.ValidationError{Field: "title", Reason: "is required"})
	}
	chore, err := c.api.CreateChore(ctx, in)
	if err != nil {
		return NoticeFor(err)
	}
	c.chores = append(c.chores, chore)
	return success("Chore added")
}

// Toggle flips a chore's completion and replaces the local entry with the
// server's row.
func (c *Calendar) Toggle(ctx context.Context, id string) Notice {
	chore, err := c.api.ToggleChore(ctx, id)
	if err != nil {
		return NoticeFor(err)
	}
	if i := slices.IndexFunc(c.chores, func(x domain.GardenChore) bool { return x.ID == id }); i >= 0 {
		c.chores[i] = chore
	} else {
		c.chores = append(c.chores, chore)
	}
	if chore.Completed {
		return success("Marked \"" + chore.Title + "\" complete")
	}
	return success("Marked \"" + chore.Title + "\" not complete")
}

// Remove deletes the chore and drops it locally on success.
func (c *Calendar) Remove(ctx context.Context, id string) Notice {
	if err := c.api.DeleteChore(ctx, id); err != nil {
		return NoticeFor(err)
	}
	c.chores = slices.DeleteFunc(c.chores, func(x domain.GardenChore) bool { return x.ID == id })
	return success("Chore removed")
}
