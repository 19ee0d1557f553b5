package botanical

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"gardenkeep/pkg/domain"
)

type trefleImage struct {
	URL string `json:"image_url"`
}

type trefleTemperature struct {
	DegC *float64 `json:"deg_c"`
}

type trefleGrowth struct {
	Description *string            `json:"description"`
	Light       *int               `json:"light"`
	MinimumTemp *trefleTemperature `json:"minimum_temperature"`
	MaximumTemp *trefleTemperature `json:"maximum_temperature"`
}

type trefleSpecies struct {
	Images map[string][]trefleImage `json:"images"`
	Growth *trefleGrowth            `json:"growth"`
}

// trefleRecord is the subset of a Trefle plant or species payload we keep.
type trefleRecord struct {
	ID               json.RawMessage `json:"id"`
	ScientificName   string          `json:"scientific_name"`
	CommonName       *string         `json:"common_name"`
	Family           *string         `json:"family"`
	FamilyCommonName *string         `json:"family_common_name"`
	Genus            *string         `json:"genus"`
	ImageURL         *string         `json:"image_url"`
	Year             *int            `json:"year"`
	Author           *string         `json:"author"`
	Bibliography     *string         `json:"bibliography"`
	Status           *string         `json:"status"`
	Rank             *string         `json:"rank"`
	Slug             *string         `json:"slug"`
	Observations     *string         `json:"observations"`
	MainSpecies      *trefleSpecies  `json:"main_species"`
}

var imageKinds = []string{"habit", "leaf", "flower", "fruit", "bark", "other"}

func (r trefleRecord) id() string {
	raw := bytes.TrimSpace(r.ID)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return domain.OptionalString(*s)
}

func (r trefleRecord) summary() domain.SpeciesSummary {
	out := domain.SpeciesSummary{
		ID:               r.id(),
		ScientificName:   strings.TrimSpace(r.ScientificName),
		CommonName:       trimmed(r.CommonName),
		Family:           trimmed(r.Family),
		FamilyCommonName: trimmed(r.FamilyCommonName),
		Genus:            trimmed(r.Genus),
		ImageURL:         trimmed(r.ImageURL),
		Year:             r.Year,
		Author:           trimmed(r.Author),
		Bibliography:     trimmed(r.Bibliography),
		Status:           trimmed(r.Status),
		Rank:             trimmed(r.Rank),
		Slug:             trimmed(r.Slug),
		Description:      trimmed(r.Observations),
	}
	if r.MainSpecies == nil {
		return out
	}
	if out.ImageURL == nil {
		for _, kind := range imageKinds {
			if imgs := r.MainSpecies.Images[kind]; len(imgs) > 0 && imgs[0].URL != "" {
				u := imgs[0].URL
				out.ImageURL = &u
				break
			}
		}
	}
	if g := r.MainSpecies.Growth; g != nil {
		if d := trimmed(g.Description); d != nil {
			out.CareInstructions = d
		}
		if g.Light != nil {
			out.LightRequirements = lightLabel(*g.Light)
		}
		out.TemperatureRange = temperatureRange(g.MinimumTemp, g.MaximumTemp)
	}
	return out
}

// lightLabel maps Trefle's 0-10 light scale to a short label.
func lightLabel(v int) *string {
	var s string
	switch {
	case v <= 3:
		s = "low light"
	case v <= 6:
		s = "partial sun"
	default:
		s = "full sun"
	}
	return &s
}

func temperatureRange(minT, maxT *trefleTemperature) *string {
	if minT == nil || maxT == nil || minT.DegC == nil || maxT.DegC == nil {
		return nil
	}
	s := formatDeg(*minT.DegC) + " to " + formatDeg(*maxT.DegC) + " °C"
	return &s
}

func formatDeg(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
