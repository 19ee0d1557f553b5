// Package client is the typed HTTP client for the gardend API. Every request
// carries the caller's anonymous identity in the X-Garden-User header.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"gardenkeep/internal/blob"
	"gardenkeep/internal/core"
	"gardenkeep/pkg/domain"
)

const (
	// DefaultBaseURL is where a local gardend listens.
	DefaultBaseURL = "http://localhost:8080"
	// DefaultTimeout bounds every API request.
	DefaultTimeout = 30 * time.Second
	// UserHeader must match the server's identity header.
	UserHeader = "X-Garden-User"

	maxErrorBody = 4096
)

// APIError is a non-2xx response. It unwraps to the domain sentinel matching
// the status so callers classify it with errors.Is and errors.As.
type APIError struct {
	Status  int
	Message string
}

// Error formats the status and server message.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

// Unwrap maps the status code back onto the error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return &domain.ValidationError{Field: "request", Reason: e.Message}
	case http.StatusForbidden:
		return domain.ErrAccessDenied
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	default:
		return nil
	}
}

// Client talks to gardend on behalf of one user.
type Client struct {
	baseURL    string
	user       domain.UserID
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// New returns a client for baseURL acting as user. An empty baseURL uses
// DefaultBaseURL.
func New(baseURL string, user domain.UserID, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		user:       user,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// User returns the identity sent with every request.
func (c *Client) User() domain.UserID { return c.user }

// ListPlants returns the user's plants, newest first.
func (c *Client) ListPlants(ctx context.Context) ([]domain.Plant, error) {
	var out struct {
		Plants []domain.Plant `json:"plants"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/plants", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Plants, nil
}

// CreatePlant stores a new plant and returns the server row.
func (c *Client) CreatePlant(ctx context.Context, in core.PlantInput) (domain.Plant, error) {
	var plant domain.Plant
	err := c.do(ctx, http.MethodPost, "/api/plants", nil, in, &plant)
	return plant, err
}

// DeletePlant removes the plant with id.
func (c *Client) DeletePlant(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/plants/"+url.PathEscape(id), nil, nil, nil)
}

// ListFavorites returns the user's saved species, newest first.
func (c *Client) ListFavorites(ctx context.Context) ([]domain.Favorite, error) {
	var out struct {
		Favorites []domain.Favorite `json:"favorites"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/favorites", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Favorites, nil
}

// AddFavorite returns domain.ErrAlreadyFavorited when the species is already
// saved.
func (c *Client) AddFavorite(ctx context.Context, species domain.SpeciesSummary) (domain.Favorite, error) {
	var out struct {
		Favorite         *domain.Favorite `json:"favorite"`
		AlreadyFavorited bool             `json:"already_favorited"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/favorites", nil, species, &out); err != nil {
		return domain.Favorite{}, err
	}
	if out.AlreadyFavorited || out.Favorite == nil {
		return domain.Favorite{}, domain.ErrAlreadyFavorited
	}
	return *out.Favorite, nil
}

// RemoveFavorite deletes the favorite with id.
func (c *Client) RemoveFavorite(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/favorites/"+url.PathEscape(id), nil, nil, nil)
}

// ListChores returns every chore ordered by scheduled date.
func (c *Client) ListChores(ctx context.Context) ([]domain.GardenChore, error) {
	return c.chores(ctx, "/api/chores", nil)
}

// CreateChore stores a new chore.
func (c *Client) CreateChore(ctx context.Context, in core.ChoreInput) (domain.GardenChore, error) {
	var chore domain.GardenChore
	err := c.do(ctx, http.MethodPost, "/api/chores", nil, in, &chore)
	return chore, err
}

// ToggleChore flips the chore's completion and returns the updated row.
func (c *Client) ToggleChore(ctx context.Context, id string) (domain.GardenChore, error) {
	var chore domain.GardenChore
	err := c.do(ctx, http.MethodPost, "/api/chores/"+url.PathEscape(id)+"/toggle", nil, nil, &chore)
	return chore, err
}

// DeleteChore removes the chore with id.
func (c *Client) DeleteChore(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chores/"+url.PathEscape(id), nil, nil, nil)
}

// ChoresOnDate returns the chores scheduled on date.
func (c *Client) ChoresOnDate(ctx context.Context, date domain.Date) ([]domain.GardenChore, error) {
	return c.chores(ctx, "/api/chores/on/"+date.String(), nil)
}

// Upcoming lists incomplete chores from from onward. A zero from means the
// server's today and a non-positive limit the server default.
func (c *Client) Upcoming(ctx context.Context, from domain.Date, limit int) ([]domain.GardenChore, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.String())
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.chores(ctx, "/api/chores/upcoming", q)
}

func (c *Client) chores(ctx context.Context, p string, q url.Values) ([]domain.GardenChore, error) {
	var out struct {
		Chores []domain.GardenChore `json:"chores"`
	}
	if err := c.do(ctx, http.MethodGet, p, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Chores, nil
}

// ListSchedules returns the user's recurring schedules.
func (c *Client) ListSchedules(ctx context.Context) ([]domain.PlantSchedule, error) {
	var out struct {
		Schedules []domain.PlantSchedule `json:"schedules"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/schedules", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Schedules, nil
}

// CreateSchedule stores a new recurring schedule.
func (c *Client) CreateSchedule(ctx context.Context, in core.ScheduleInput) (domain.PlantSchedule, error) {
	var sched domain.PlantSchedule
	err := c.do(ctx, http.MethodPost, "/api/schedules", nil, in, &sched)
	return sched, err
}

// CompleteSchedule records a completion on date; a zero date means today.
func (c *Client) CompleteSchedule(ctx context.Context, id string, date domain.Date) (domain.PlantSchedule, error) {
	q := url.Values{}
	if !date.IsZero() {
		q.Set("date", date.String())
	}
	var sched domain.PlantSchedule
	err := c.do(ctx, http.MethodPost, "/api/schedules/"+url.PathEscape(id)+"/complete", q, nil, &sched)
	return sched, err
}

// DeleteSchedule removes the schedule with id.
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/schedules/"+url.PathEscape(id), nil, nil, nil)
}

// EvaluateRecurrences asks the server to emit chores for due schedules.
func (c *Client) EvaluateRecurrences(ctx context.Context, today domain.Date) ([]domain.GardenChore, error) {
	q := url.Values{}
	if !today.IsZero() {
		q.Set("today", today.String())
	}
	var out struct {
		Chores []domain.GardenChore `json:"chores"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/schedules/evaluate", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Chores, nil
}

// SearchSpecies queries the botanical proxy.
func (c *Client) SearchSpecies(ctx context.Context, query domain.SpeciesQuery) ([]domain.SpeciesSummary, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"q":               query.Query,
		"scientific_name": query.ScientificName,
		"common_name":     query.CommonName,
		"family":          query.Family,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		q.Set("offset", strconv.Itoa(query.Offset))
	}
	var out struct {
		Results []domain.SpeciesSummary `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/botanical/search", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []domain.SpeciesSummary{}
	}
	return out.Results, nil
}

// GetSpecies fetches one species by Trefle id or slug.
func (c *Client) GetSpecies(ctx context.Context, id string) (domain.SpeciesSummary, error) {
	var species domain.SpeciesSummary
	err := c.do(ctx, http.MethodGet, "/botanical/species/"+url.PathEscape(id), nil, nil, &species)
	return species, err
}

// UploadImage sends r as a multipart upload and returns the stored image.
func (c *Client) UploadImage(ctx context.Context, name, contentType string, r io.Reader) (blob.Info, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(name)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return blob.Info{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return blob.Info{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return blob.Info{}, fmt.Errorf("build upload: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/images", nil, &buf)
	if err != nil {
		return blob.Info{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var info blob.Info
	err = c.send(req, &info)
	return info, err
}

func (c *Client) do(ctx context.Context, method, p string, q url.Values, body, into any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, p, q, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, into)
}

func (c *Client) newRequest(ctx context.Context, method, p string, q url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + p
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if !c.user.IsNull() {
		req.Header.Set(UserHeader, c.user.String())
	}
	return req, nil
}

func (c *Client) send(req *http.Request, into any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if into == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// IsAPIError reports whether err carries an API response with status.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
