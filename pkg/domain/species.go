package domain

import "regexp"

// SpeciesQuery filters a botanical search. Empty fields are not sent
// upstream; Limit <= 0 means the gateway default.
type SpeciesQuery struct {
	Query          string
	ScientificName string
	CommonName     string
	Family         string
	Limit          int
	Offset         int
}

// IsEmpty reports whether no text filter is set.
func (q SpeciesQuery) IsEmpty() bool {
	return q.Query == "" && q.ScientificName == "" && q.CommonName == "" && q.Family == ""
}

var speciesIDPattern = regexp.MustCompile(`^(?:[0-9]+|[a-z0-9]+(?:-[a-z0-9]+)*)$`)

// ValidateSpeciesID accepts numeric identifiers and lowercase slugs.
func ValidateSpeciesID(id string) error {
	if !speciesIDPattern.MatchString(id) {
		return &ValidationError{Field: "species_id", Reason: "must be numeric or a lowercase slug"}
	}
	return nil
}
