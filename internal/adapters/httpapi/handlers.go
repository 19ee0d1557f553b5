package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gardenkeep/internal/core"
	"gardenkeep/pkg/domain"
)

func decodeJSON(r *http.Request, into any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(into); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}

func dateParam(raw, field string) (domain.Date, error) {
	if raw == "" {
		return domain.Date{}, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, &domain.ValidationError{Field: field, Reason: "must be YYYY-MM-DD"}
	}
	return d, nil
}

func (s *Server) searchSpecies(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	results, err := s.svc.SearchSpecies(r.Context(), domain.SpeciesQuery{
		Query:          q.Get("q"),
		ScientificName: q.Get("scientific_name"),
		CommonName:     q.Get("common_name"),
		Family:         q.Get("family"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		s.fail(w, r, botanicalStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) getSpecies(w http.ResponseWriter, r *http.Request) {
	species, err := s.svc.GetSpecies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, botanicalStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, species)
}

func (s *Server) listPlants(w http.ResponseWriter, r *http.Request) {
	plants, err := s.svc.ListPlants(r.Context(), userOf(r))
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plants": plants})
}

func (s *Server) createPlant(w http.ResponseWriter, r *http.Request) {
	var in core.PlantInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	plant, err := s.svc.CreatePlant(r.Context(), userOf(r), in)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, plant)
}

func (s *Server) deletePlant(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeletePlant(r.Context(), userOf(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.svc.ListFavorites(r.Context(), userOf(r))
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites})
}

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request) {
	var species domain.SpeciesSummary
	if err := decodeJSON(r, &species); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	fav, err := s.svc.AddFavorite(r.Context(), userOf(r), species)
	switch {
	case errors.Is(err, domain.ErrAlreadyFavorited):
		writeJSON(w, http.StatusOK, map[string]any{"favorite": nil, "already_favorited": true})
	case err != nil:
		s.fail(w, r, apiStatus(err), err)
	default:
		writeJSON(w, http.StatusCreated, map[string]any{"favorite": fav, "already_favorited": false})
	}
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveFavorite(r.Context(), userOf(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listChores(w http.ResponseWriter, r *http.Request) {
	chores, err := s.svc.ListChores(r.Context(), userOf(r))
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chores": chores})
}

func (s *Server) createChore(w http.ResponseWriter, r *http.Request) {
	var in core.ChoreInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	chore, err := s.svc.CreateChore(r.Context(), userOf(r), in)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, chore)
}

func (s *Server) choresOnDate(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(chi.URLParam(r, "date"), "date")
	if err == nil && date.IsZero() {
		err = &domain.ValidationError{Field: "date", Reason: "is required"}
	}
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	chores, err := s.svc.ChoresOnDate(r.Context(), userOf(r), date)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chores": chores})
}

func (s *Server) upcomingChores(w http.ResponseWriter, r *http.Request) {
	from, err := dateParam(r.URL.Query().Get("from"), "from")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	chores, err := s.svc.UpcomingChores(r.Context(), userOf(r), from, limit)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chores": chores})
}

func (s *Server) toggleChore(w http.ResponseWriter, r *http.Request) {
	chore, err := s.svc.ToggleChore(r.Context(), userOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, chore)
}

func (s *Server) deleteChore(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteChore(r.Context(), userOf(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.svc.ListSchedules(r.Context(), userOf(r))
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var in core.ScheduleInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	sched, err := s.svc.CreateSchedule(r.Context(), userOf(r), in)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

func (s *Server) completeSchedule(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r.URL.Query().Get("date"), "date")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	sched, err := s.svc.CompleteSchedule(r.Context(), userOf(r), chi.URLParam(r, "id"), date)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) evaluateRecurrences(w http.ResponseWriter, r *http.Request) {
	today, err := dateParam(r.URL.Query().Get("today"), "today")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	chores, err := s.svc.EvaluateRecurrences(r.Context(), userOf(r), today)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chores": chores})
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSchedule(r.Context(), userOf(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) imagesConfigured(w http.ResponseWriter, r *http.Request) bool {
	if s.images == nil {
		s.fail(w, r, http.StatusNotFound, errors.New("image storage not configured"))
		return false
	}
	return true
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	if !s.imagesConfigured(w, r) {
		return
	}
	images, err := s.images.List(r.Context(), userOf(r))
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	if !s.imagesConfigured(w, r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, &domain.ValidationError{Field: "file", Reason: err.Error()})
		return
	}
	defer file.Close()
	info, err := s.images.Upload(r.Context(), userOf(r), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// getImage serves an image to anyone holding its key, so plant image URLs
// work from plain links without the identity header. Keys embed the owner and
// a random UUID; writes and deletes stay owner-scoped.
func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	if !s.imagesConfigured(w, r) {
		return
	}
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	info, rc, err := s.images.Open(r.Context(), key)
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	defer rc.Close()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", fmt.Sprintf("%q", info.ETag))
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	if !s.imagesConfigured(w, r) {
		return
	}
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if err := s.images.Delete(r.Context(), userOf(r), key); err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) favoritesDiagnostics(w http.ResponseWriter, r *http.Request) {
	tables, err := core.CheckTables(r.Context(), s.svc.Store())
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	probe, err := core.ProbeFavoritesPolicy(r.Context(), s.svc.Store())
	if err != nil {
		s.fail(w, r, apiStatus(err), err)
		return
	}
	status := http.StatusOK
	if len(core.MissingTables(tables)) > 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"tables":  tables,
		"missing": core.MissingTables(tables),
		"probe":   probe,
	})
}
