package sqlstore

import (
	"fmt"
	"time"

	"gardenkeep/pkg/domain"
)

// sqlite keeps timestamps as text; pgx hands back time.Time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type timestamp struct{ dst *time.Time }

func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.dst = v.UTC()
		return nil
	case string:
		t, err := parseTimestamp(v)
		if err != nil {
			return err
		}
		*ts.dst = t
		return nil
	case []byte:
		return ts.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

type nullTimestamp struct{ dst **time.Time }

func (ts nullTimestamp) Scan(src any) error {
	if src == nil {
		*ts.dst = nil
		return nil
	}
	var t time.Time
	if err := (timestamp{dst: &t}).Scan(src); err != nil {
		return err
	}
	*ts.dst = &t
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const plantColumns = "id, user_id, name, botanical_name, species_id, location, date_planted, notes, image_url, created_at, updated_at"

func scanPlant(r rowScanner) (domain.Plant, error) {
	var p domain.Plant
	err := r.Scan(&p.ID, &p.UserID, &p.Name, &p.BotanicalName, &p.SpeciesID, &p.Location,
		&p.DatePlanted, &p.Notes, &p.ImageURL, timestamp{&p.CreatedAt}, timestamp{&p.UpdatedAt})
	return p, err
}

const favoriteColumns = "id, user_id, species_id, botanical_name, common_name, created_at"

func scanFavorite(r rowScanner) (domain.Favorite, error) {
	var f domain.Favorite
	err := r.Scan(&f.ID, &f.UserID, &f.SpeciesID, &f.BotanicalName, &f.CommonName, timestamp{&f.CreatedAt})
	return f, err
}

const choreColumns = "id, user_id, plant_id, title, description, chore_type, scheduled_date, completed, completed_at, created_at, updated_at"

func scanChore(r rowScanner) (domain.GardenChore, error) {
	var c domain.GardenChore
	err := r.Scan(&c.ID, &c.UserID, &c.PlantID, &c.Title, &c.Description, &c.ChoreType, &c.ScheduledDate,
		&c.Completed, nullTimestamp{&c.CompletedAt}, timestamp{&c.CreatedAt}, timestamp{&c.UpdatedAt})
	return c, err
}

const scheduleColumns = "id, user_id, plant_id, chore_type, frequency_days, last_completed, next_due_date, notes, active, created_at, updated_at"

func scanSchedule(r rowScanner) (domain.PlantSchedule, error) {
	var s domain.PlantSchedule
	err := r.Scan(&s.ID, &s.UserID, &s.PlantID, &s.ChoreType, &s.FrequencyDays, &s.LastCompleted,
		&s.NextDueDate, &s.Notes, &s.Active, timestamp{&s.CreatedAt}, timestamp{&s.UpdatedAt})
	return s, err
}

func dateArg(d *domain.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
