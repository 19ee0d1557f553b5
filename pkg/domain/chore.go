package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ChoreType is the closed set of garden chore kinds. Values outside the set
// read back from storage become ChoreTypeUnknown.
type ChoreType string

// Known chore types.
const (
	ChoreWatering    ChoreType = "watering"
	ChoreFertilizing ChoreType = "fertilizing"
	ChorePruning     ChoreType = "pruning"
	ChoreRepotting   ChoreType = "repotting"
	ChoreHarvesting  ChoreType = "harvesting"
	ChoreOther       ChoreType = "other"
	// ChoreTypeUnknown marks a stored value that is not a known chore type.
	ChoreTypeUnknown ChoreType = "unknown"
)

// ChoreTypes lists the known chore types in display order.
var ChoreTypes = []ChoreType{
	ChoreWatering,
	ChoreFertilizing,
	ChorePruning,
	ChoreRepotting,
	ChoreHarvesting,
	ChoreOther,
}

// DefaultUpcomingLimit bounds Upcoming when the caller passes no limit.
const DefaultUpcomingLimit = 5

var choreGlyphs = map[ChoreType]string{
	ChoreWatering:    "💧",
	ChoreFertilizing: "🌿",
	ChorePruning:     "✂️",
	ChoreRepotting:   "🪴",
	ChoreHarvesting:  "🌾",
	ChoreOther:       "📋",
}

// UnknownChoreGlyph is shown for ChoreTypeUnknown.
const UnknownChoreGlyph = "❔"

// ParseChoreType maps a stored or submitted string to a ChoreType. The second
// return is false (and the type ChoreTypeUnknown) for unrecognized input.
func ParseChoreType(s string) (ChoreType, bool) {
	ct := ChoreType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := choreGlyphs[ct]; ok {
		return ct, true
	}
	return ChoreTypeUnknown, false
}

// Known reports whether ct is one of the six chore types.
func (ct ChoreType) Known() bool {
	_, ok := choreGlyphs[ct]
	return ok
}

// UnmarshalJSON decodes a chore type, mapping unrecognized strings to
// ChoreTypeUnknown.
func (ct *ChoreType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode chore type: %w", err)
	}
	*ct, _ = ParseChoreType(s)
	return nil
}

// Scan implements sql.Scanner.
func (ct *ChoreType) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ct = ChoreTypeUnknown
	case string:
		*ct, _ = ParseChoreType(v)
	case []byte:
		*ct, _ = ParseChoreType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ChoreType", src)
	}
	return nil
}

// ChoreTypeGlyph returns the presentation glyph for ct.
func ChoreTypeGlyph(ct ChoreType) string {
	if g, ok := choreGlyphs[ct]; ok {
		return g
	}
	return UnknownChoreGlyph
}

// Label returns ct capitalised for display.
func (ct ChoreType) Label() string {
	s := string(ct)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ToggleComplete returns c with its completion flipped. Marking a chore done
// stamps CompletedAt with now; reopening it clears CompletedAt.
func (c GardenChore) ToggleComplete(now time.Time) GardenChore {
	if c.Completed {
		c.Completed = false
		c.CompletedAt = nil
		return c
	}
	stamp := now.UTC()
	c.Completed = true
	c.CompletedAt = &stamp
	return c
}

// CompletionConsistent reports whether CompletedAt is set exactly when the
// chore is completed.
func (c GardenChore) CompletionConsistent() bool {
	return c.Completed == (c.CompletedAt != nil)
}

// ChoresOnDate returns the chores scheduled exactly on date, in input order.
func ChoresOnDate(chores []GardenChore, date Date) []GardenChore {
	out := make([]GardenChore, 0, len(chores))
	for _, c := range chores {
		if c.ScheduledDate.Equal(date) {
			out = append(out, c)
		}
	}
	return out
}

// Upcoming returns at most limit incomplete chores scheduled on or after from,
// ordered by scheduled date. Chores sharing a date keep their input order.
func Upcoming(chores []GardenChore, from Date, limit int) []GardenChore {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	out := make([]GardenChore, 0, len(chores))
	for _, c := range chores {
		if c.Completed || c.ScheduledDate.Before(from) {
			continue
		}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b GardenChore) int {
		return a.ScheduledDate.Compare(b.ScheduledDate)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
