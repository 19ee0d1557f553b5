package domain

// NextDue returns the date the schedule next falls due: the later of the
// stored anchor and LastCompleted + FrequencyDays.
func (s PlantSchedule) NextDue() Date {
	if s.LastCompleted == nil || s.LastCompleted.IsZero() {
		return s.NextDueDate
	}
	derived := s.LastCompleted.AddDays(s.FrequencyDays)
	if derived.After(s.NextDueDate) {
		return derived
	}
	return s.NextDueDate
}

// DueOn reports whether an active schedule is due on or before today.
func (s PlantSchedule) DueOn(today Date) bool {
	return s.Active && !s.NextDue().After(today)
}

// Advance moves the anchor to today + FrequencyDays after a chore has been
// emitted for today. LastCompleted is left alone.
func (s PlantSchedule) Advance(today Date) PlantSchedule {
	s.NextDueDate = today.AddDays(s.FrequencyDays)
	return s
}

// MarkCompleted records a completion on date and re-derives NextDueDate.
func (s PlantSchedule) MarkCompleted(date Date) PlantSchedule {
	d := date
	s.LastCompleted = &d
	s.NextDueDate = date.AddDays(s.FrequencyDays)
	return s
}

// Validate checks the template fields a caller supplies.
func (s PlantSchedule) Validate() error {
	if s.PlantID == "" {
		return &ValidationError{Field: "plant_id", Reason: "is required"}
	}
	if !s.ChoreType.Known() {
		return &ValidationError{Field: "chore_type", Reason: "must be one of watering, fertilizing, pruning, repotting, harvesting, other"}
	}
	if s.FrequencyDays <= 0 {
		return &ValidationError{Field: "frequency_days", Reason: "must be a positive number of days"}
	}
	if s.NextDueDate.IsZero() && (s.LastCompleted == nil || s.LastCompleted.IsZero()) {
		return &ValidationError{Field: "next_due_date", Reason: "is required when last_completed is unset"}
	}
	return nil
}

// Normalize derives NextDueDate from LastCompleted when one is recorded, so
// stored rows satisfy NextDueDate == LastCompleted + FrequencyDays.
func (s PlantSchedule) Normalize() PlantSchedule {
	if s.LastCompleted != nil && !s.LastCompleted.IsZero() {
		s.NextDueDate = s.LastCompleted.AddDays(s.FrequencyDays)
	}
	return s
}

// RecurringChore builds the chore emitted for s on today.
func (s PlantSchedule) RecurringChore(today Date) GardenChore {
	plantID := s.PlantID
	return GardenChore{
		UserID:        s.UserID,
		PlantID:       &plantID,
		Title:         s.ChoreType.Label() + " (recurring)",
		Description:   s.Notes,
		ChoreType:     s.ChoreType,
		ScheduledDate: today,
	}
}
