package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gardenkeep/pkg/domain"

	"github.com/google/uuid"
)

type transaction struct {
	ctx      context.Context
	store    *Store
	tx       *sql.Tx
	owner    domain.UserID
	readOnly bool
}

func (t *transaction) wrap(op string, err error) error {
	return fmt.Errorf("%s: %s: %w", t.store.dialect.Name, op, t.store.translate(err))
}

func (t *transaction) writable() error {
	if t.readOnly {
		return fmt.Errorf("%s: write in read-only view", t.store.dialect.Name)
	}
	return nil
}

func (t *transaction) stamp() time.Time { return t.store.now().UTC() }

func (t *transaction) ts(v time.Time) any { return t.store.dialect.Timestamp(v) }

func (t *transaction) exec(query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(t.ctx, t.store.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *transaction) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, t.store.rebind(query), args...)
}

func queryAll[T any](t *transaction, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := t.tx.QueryContext(t.ctx, t.store.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *transaction) plantOwned(id string) error {
	var one int
	err := t.queryRow(`SELECT 1 FROM plants WHERE id = ? AND user_id = ?`, id, string(t.owner)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(t.store.translate(err), domain.ErrNotFound) {
		return domain.NotFoundError{Entity: domain.EntityPlant, ID: id}
	}
	if err != nil {
		return t.wrap("lookup plant", err)
	}
	return nil
}

func (t *transaction) deleteOwned(table string, entity domain.EntityType, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	n, err := t.exec(`DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, string(t.owner))
	if err != nil {
		if errors.Is(t.store.translate(err), domain.ErrNotFound) {
			return domain.NotFoundError{Entity: entity, ID: id}
		}
		return t.wrap("delete "+string(entity), err)
	}
	if n == 0 {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func (t *transaction) ListPlants() ([]domain.Plant, error) {
	plants, err := queryAll(t, scanPlant, `SELECT `+plantColumns+` FROM plants WHERE user_id = ? ORDER BY seq DESC`, string(t.owner))
	if err != nil {
		return nil, t.wrap("list plants", err)
	}
	return plants, nil
}

func (t *transaction) CreatePlant(p domain.Plant) (domain.Plant, error) {
	if err := t.writable(); err != nil {
		return domain.Plant{}, err
	}
	now := t.stamp()
	p.ID = uuid.NewString()
	p.UserID = t.owner
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := t.exec(`INSERT INTO plants (id, user_id, name, botanical_name, species_id, location, date_planted, notes, image_url, created_at, updated_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM plants))`,
		p.ID, string(p.UserID), p.Name, stringArg(p.BotanicalName), stringArg(p.SpeciesID), stringArg(p.Location),
		dateArg(p.DatePlanted), stringArg(p.Notes), stringArg(p.ImageURL), t.ts(now), t.ts(now))
	if err != nil {
		return domain.Plant{}, t.wrap("insert plant", err)
	}
	return p, nil
}

// DeletePlant removes the plant, its schedules, and detaches its chores. The
// schema declares the same cascade; doing it here keeps the behavior when
// foreign keys are disabled.
func (t *transaction) DeletePlant(id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.plantOwned(id); err != nil {
		return err
	}
	if _, err := t.exec(`DELETE FROM plant_schedules WHERE plant_id = ? AND user_id = ?`, id, string(t.owner)); err != nil {
		return t.wrap("cascade schedules", err)
	}
	if _, err := t.exec(`UPDATE garden_chores SET plant_id = NULL WHERE plant_id = ? AND user_id = ?`, id, string(t.owner)); err != nil {
		return t.wrap("detach chores", err)
	}
	return t.deleteOwned("plants", domain.EntityPlant, id)
}

func (t *transaction) ListFavorites() ([]domain.Favorite, error) {
	favs, err := queryAll(t, scanFavorite, `SELECT `+favoriteColumns+` FROM favorites WHERE user_id = ? ORDER BY seq DESC`, string(t.owner))
	if err != nil {
		return nil, t.wrap("list favorites", err)
	}
	return favs, nil
}

func (t *transaction) CreateFavorite(f domain.Favorite) (domain.Favorite, error) {
	if err := t.writable(); err != nil {
		return domain.Favorite{}, err
	}
	f.ID = uuid.NewString()
	f.UserID = t.owner
	f.CreatedAt = t.stamp()
	_, err := t.exec(`INSERT INTO favorites (id, user_id, species_id, botanical_name, common_name, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM favorites))`,
		f.ID, string(f.UserID), f.SpeciesID, f.BotanicalName, stringArg(f.CommonName), t.ts(f.CreatedAt))
	if err != nil {
		if errors.Is(t.store.translate(err), domain.ErrConflict) {
			return domain.Favorite{}, domain.ErrAlreadyFavorited
		}
		return domain.Favorite{}, t.wrap("insert favorite", err)
	}
	return f, nil
}

func (t *transaction) DeleteFavorite(id string) error {
	return t.deleteOwned("favorites", domain.EntityFavorite, id)
}

func (t *transaction) ListChores() ([]domain.GardenChore, error) {
	chores, err := queryAll(t, scanChore, `SELECT `+choreColumns+` FROM garden_chores WHERE user_id = ? ORDER BY scheduled_date, seq`, string(t.owner))
	if err != nil {
		return nil, t.wrap("list chores", err)
	}
	return chores, nil
}

func (t *transaction) GetChore(id string) (domain.GardenChore, error) {
	c, err := scanChore(t.queryRow(`SELECT `+choreColumns+` FROM garden_chores WHERE id = ? AND user_id = ?`, id, string(t.owner)))
	if errors.Is(err, sql.ErrNoRows) || (err != nil && errors.Is(t.store.translate(err), domain.ErrNotFound)) {
		return domain.GardenChore{}, domain.NotFoundError{Entity: domain.EntityChore, ID: id}
	}
	if err != nil {
		return domain.GardenChore{}, t.wrap("get chore", err)
	}
	return c, nil
}

func (t *transaction) CreateChore(c domain.GardenChore) (domain.GardenChore, error) {
	if err := t.writable(); err != nil {
		return domain.GardenChore{}, err
	}
	if c.PlantID != nil {
		if err := t.plantOwned(*c.PlantID); err != nil {
			return domain.GardenChore{}, err
		}
	}
	now := t.stamp()
	c.ID = uuid.NewString()
	c.UserID = t.owner
	c.CreatedAt, c.UpdatedAt = now, now
	var completedAt any
	if c.Completed {
		if c.CompletedAt == nil {
			at := now
			c.CompletedAt = &at
		}
		completedAt = t.ts(*c.CompletedAt)
	} else {
		c.CompletedAt = nil
	}
	_, err := t.exec(`INSERT INTO garden_chores (id, user_id, plant_id, title, description, chore_type, scheduled_date, completed, completed_at, created_at, updated_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM garden_chores))`,
		c.ID, string(c.UserID), stringArg(c.PlantID), c.Title, stringArg(c.Description), string(c.ChoreType),
		c.ScheduledDate.String(), c.Completed, completedAt, t.ts(now), t.ts(now))
	if err != nil {
		return domain.GardenChore{}, t.wrap("insert chore", err)
	}
	return c, nil
}

func (t *transaction) SetChoreCompletion(id string, completed bool, completedAt *time.Time) (domain.GardenChore, error) {
	if err := t.writable(); err != nil {
		return domain.GardenChore{}, err
	}
	if completed != (completedAt != nil) {
		return domain.GardenChore{}, fmt.Errorf("%s: completed_at must be set exactly when completed", t.store.dialect.Name)
	}
	var at any
	if completedAt != nil {
		at = t.ts(*completedAt)
	}
	n, err := t.exec(`UPDATE garden_chores SET completed = ?, completed_at = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		completed, at, t.ts(t.stamp()), id, string(t.owner))
	if err != nil {
		if errors.Is(t.store.translate(err), domain.ErrNotFound) {
			return domain.GardenChore{}, domain.NotFoundError{Entity: domain.EntityChore, ID: id}
		}
		return domain.GardenChore{}, t.wrap("update chore", err)
	}
	if n == 0 {
		return domain.GardenChore{}, domain.NotFoundError{Entity: domain.EntityChore, ID: id}
	}
	return t.GetChore(id)
}

func (t *transaction) DeleteChore(id string) error {
	return t.deleteOwned("garden_chores", domain.EntityChore, id)
}

func (t *transaction) ListSchedules() ([]domain.PlantSchedule, error) {
	schedules, err := queryAll(t, scanSchedule, `SELECT `+scheduleColumns+` FROM plant_schedules WHERE user_id = ? ORDER BY next_due_date, seq`, string(t.owner))
	if err != nil {
		return nil, t.wrap("list schedules", err)
	}
	return schedules, nil
}

func (t *transaction) GetSchedule(id string) (domain.PlantSchedule, error) {
	s, err := scanSchedule(t.queryRow(`SELECT `+scheduleColumns+` FROM plant_schedules WHERE id = ? AND user_id = ?`, id, string(t.owner)))
	if errors.Is(err, sql.ErrNoRows) || (err != nil && errors.Is(t.store.translate(err), domain.ErrNotFound)) {
		return domain.PlantSchedule{}, domain.NotFoundError{Entity: domain.EntitySchedule, ID: id}
	}
	if err != nil {
		return domain.PlantSchedule{}, t.wrap("get schedule", err)
	}
	return s, nil
}

func (t *transaction) CreateSchedule(s domain.PlantSchedule) (domain.PlantSchedule, error) {
	if err := t.writable(); err != nil {
		return domain.PlantSchedule{}, err
	}
	if err := t.plantOwned(s.PlantID); err != nil {
		return domain.PlantSchedule{}, err
	}
	now := t.stamp()
	s.ID = uuid.NewString()
	s.UserID = t.owner
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := t.exec(`INSERT INTO plant_schedules (id, user_id, plant_id, chore_type, frequency_days, last_completed, next_due_date, notes, active, created_at, updated_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM plant_schedules))`,
		s.ID, string(s.UserID), s.PlantID, string(s.ChoreType), s.FrequencyDays, dateArg(s.LastCompleted),
		s.NextDueDate.String(), stringArg(s.Notes), s.Active, t.ts(now), t.ts(now))
	if err != nil {
		return domain.PlantSchedule{}, t.wrap("insert schedule", err)
	}
	return s, nil
}

// UpdateSchedule rewrites the mutable schedule fields. PlantID and CreatedAt
// are kept from the stored row.
func (t *transaction) UpdateSchedule(s domain.PlantSchedule) (domain.PlantSchedule, error) {
	if err := t.writable(); err != nil {
		return domain.PlantSchedule{}, err
	}
	n, err := t.exec(`UPDATE plant_schedules SET chore_type = ?, frequency_days = ?, last_completed = ?, next_due_date = ?, notes = ?, active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		string(s.ChoreType), s.FrequencyDays, dateArg(s.LastCompleted), s.NextDueDate.String(), stringArg(s.Notes), s.Active,
		t.ts(t.stamp()), s.ID, string(t.owner))
	if err != nil {
		if errors.Is(t.store.translate(err), domain.ErrNotFound) {
			return domain.PlantSchedule{}, domain.NotFoundError{Entity: domain.EntitySchedule, ID: s.ID}
		}
		return domain.PlantSchedule{}, t.wrap("update schedule", err)
	}
	if n == 0 {
		return domain.PlantSchedule{}, domain.NotFoundError{Entity: domain.EntitySchedule, ID: s.ID}
	}
	return t.GetSchedule(s.ID)
}

func (t *transaction) DeleteSchedule(id string) error {
	return t.deleteOwned("plant_schedules", domain.EntitySchedule, id)
}
