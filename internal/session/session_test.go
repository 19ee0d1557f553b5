package session

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gardenkeep/internal/adapters/httpapi"
	"gardenkeep/internal/adapters/testutil"
	"gardenkeep/internal/client"
	"gardenkeep/internal/core"
	"gardenkeep/pkg/domain"
)

type fakeAPI struct {
	calls  int
	err    error
	plants []domain.Plant
	chores []domain.GardenChore
	favs   []domain.Favorite
}

func (f *fakeAPI) ListPlants(context.Context) ([]domain.Plant, error) {
	f.calls++
	return f.plants, f.err
}

func (f *fakeAPI) CreatePlant(_ context.Context, in core.PlantInput) (domain.Plant, error) {
	f.calls++
	if f.err != nil {
		return domain.Plant{}, f.err
	}
	return domain.Plant{ID: fmt.Sprintf("p%d", f.calls), Name: in.Name, SpeciesID: domain.OptionalString(in.SpeciesID)}, nil
}

func (f *fakeAPI) DeletePlant(context.Context, string) error {
	f.calls++
	return f.err
}

func (f *fakeAPI) ListFavorites(context.Context) ([]domain.Favorite, error) {
	f.calls++
	return f.favs, f.err
}

func (f *fakeAPI) AddFavorite(_ context.Context, sp domain.SpeciesSummary) (domain.Favorite, error) {
	f.calls++
	if f.err != nil {
		return domain.Favorite{}, f.err
	}
	return domain.Favorite{ID: "f" + sp.ID, SpeciesID: sp.ID, BotanicalName: sp.ScientificName}, nil
}

func (f *fakeAPI) RemoveFavorite(context.Context, string) error {
	f.calls++
	return f.err
}

func (f *fakeAPI) ListChores(context.Context) ([]domain.GardenChore, error) {
	f.calls++
	return f.chores, f.err
}

func (f *fakeAPI) CreateChore(_ context.Context, in core.ChoreInput) (domain.GardenChore, error) {
	f.calls++
	if f.err != nil {
		return domain.GardenChore{}, f.err
	}
	return domain.GardenChore{ID: "c-new", Title: in.Title, ScheduledDate: in.ScheduledDate}, nil
}

func (f *fakeAPI) ToggleChore(_ context.Context, id string) (domain.GardenChore, error) {
	f.calls++
	if f.err != nil {
		return domain.GardenChore{}, f.err
	}
	for _, c := range f.chores {
		if c.ID == id {
			return c.ToggleComplete(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)), nil
		}
	}
	return domain.GardenChore{}, domain.ErrNotFound
}

func (f *fakeAPI) DeleteChore(context.Context, string) error {
	f.calls++
	return f.err
}

func TestEmptyNameMakesNoCalls(t *testing.T) {
	api := &fakeAPI{plants: []domain.Plant{{ID: "p0", Name: "Fern"}}}
	c := NewCollection(api)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := api.calls
	for _, name := range []string{"", "   ", "\t\n"} {
		n := c.Add(context.Background(), core.PlantInput{Name: name})
		if !n.Failed() || n.Message != msgPlantNameRequired {
			t.Fatalf("name %q: unexpected notice %+v", name, n)
		}
	}
	if api.calls != before {
		t.Fatalf("expected no API calls, got %d", api.calls-before)
	}
	if got := c.Plants(); len(got) != 1 || got[0].ID != "p0" {
		t.Fatalf("local state changed: %+v", got)
	}
}

func TestCollectionMergesOnlyOnSuccess(t *testing.T) {
	api := &fakeAPI{plants: []domain.Plant{{ID: "p0", Name: "Fern"}}}
	c := NewCollection(api)
	_ = c.Load(context.Background())

	if n := c.Add(context.Background(), core.PlantInput{Name: "Basil"}); n.Level != NoticeSuccess {
		t.Fatalf("add: %+v", n)
	}
	if got := c.Plants(); len(got) != 2 || got[0].Name != "Basil" {
		t.Fatalf("new plant must be first: %+v", got)
	}

	api.err = errors.New("store unreachable")
	n := c.Add(context.Background(), core.PlantInput{Name: "Mint"})
	if !n.Failed() || n.Message != "store unreachable" {
		t.Fatalf("expected error notice, got %+v", n)
	}
	if len(c.Plants()) != 2 {
		t.Fatalf("failed add must not change local state")
	}
	if n := c.Remove(context.Background(), "p0"); !n.Failed() {
		t.Fatalf("failed remove should surface: %+v", n)
	}
	if len(c.Plants()) != 2 {
		t.Fatalf("failed remove must not change local state")
	}

	api.err = domain.NotFoundError{Entity: domain.EntityPlant, ID: "p0"}
	if n := c.Remove(context.Background(), "p0"); n.Failed() {
		t.Fatalf("not found still removes locally: %+v", n)
	}
	if len(c.Plants()) != 1 {
		t.Fatalf("expected p0 dropped, got %+v", c.Plants())
	}
}

func TestAddSpeciesSkipsCollected(t *testing.T) {
	api := &fakeAPI{}
	c := NewCollection(api)
	sp := testutil.DefaultCatalog()[2]
	if n := c.AddSpecies(context.Background(), sp); n.Level != NoticeSuccess {
		t.Fatalf("first add: %+v", n)
	}
	if got := c.Plants(); got[0].Name != "Basil" {
		t.Fatalf("expected the common name, got %q", got[0].Name)
	}
	calls := api.calls
	if n := c.AddSpecies(context.Background(), sp); n.Level != NoticeInfo || n.Message != msgAlreadyCollected {
		t.Fatalf("second add: %+v", n)
	}
	if api.calls != calls {
		t.Fatalf("duplicate species should not reach the server")
	}
}

func TestNoticeFor(t *testing.T) {
	cases := []struct {
		err   error
		level NoticeLevel
		want  string
	}{
		{fmt.Errorf("add favorite: %w", domain.ErrAlreadyFavorited), NoticeInfo, msgAlreadyFavorited},
		{domain.ErrAccessDenied, NoticeError, "Permission denied"},
		{&domain.ConfigError{Setting: "BOTANICAL_API_TOKEN"}, NoticeError, "BOTANICAL_API_TOKEN"},
		{&client.APIError{Status: 403, Message: "access denied"}, NoticeError, "run the database migration"},
		{errors.New("boom"), NoticeError, "boom"},
	}
	for _, tc := range cases {
		n := NoticeFor(tc.err)
		if n.Level != tc.level || !strings.Contains(n.Message, tc.want) {
			t.Fatalf("NoticeFor(%v) = %+v", tc.err, n)
		}
	}
	if n := NoticeFor(nil); n.Level != "" {
		t.Fatalf("nil error should give an empty notice")
	}
}

func TestFavoritesDuplicateIsInformational(t *testing.T) {
	api := &fakeAPI{}
	f := NewFavorites(api)
	sp := testutil.DefaultCatalog()[0]
	if n := f.Add(context.Background(), sp); n.Level != NoticeSuccess {
		t.Fatalf("add: %+v", n)
	}
	api.err = domain.ErrAlreadyFavorited
	n := f.Add(context.Background(), sp)
	if n.Level != NoticeInfo || n.Failed() || n.Message != msgAlreadyFavorited {
		t.Fatalf("duplicate: %+v", n)
	}
	if len(f.Items()) != 1 {
		t.Fatalf("duplicate must not add a row")
	}
	api.err = nil
	if n := f.Remove(context.Background(), "f1"); n.Failed() || len(f.Items()) != 0 {
		t.Fatalf("remove: %+v %+v", n, f.Items())
	}
}

func TestCalendarViews(t *testing.T) {
	day := domain.MustParseDate("2024-06-01")
	var chores []domain.GardenChore
	for i := 0; i < 7; i++ {
		chores = append(chores, domain.GardenChore{ID: fmt.Sprintf("c%d", i), Title: "water", ChoreType: domain.ChoreWatering, ScheduledDate: day.AddDays(i)})
	}
	api := &fakeAPI{chores: chores}
	cal := NewCalendar(api)
	if err := cal.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if up := cal.Upcoming(day, domain.DefaultUpcomingLimit); len(up) != 5 || up[0].ID != "c0" {
		t.Fatalf("upcoming: %+v", up)
	}
	if n := cal.Toggle(context.Background(), "c0"); n.Failed() {
		t.Fatalf("toggle: %+v", n)
	}
	if on := cal.On(day); len(on) != 1 || !on[0].Completed || on[0].CompletedAt == nil {
		t.Fatalf("toggled chore not merged: %+v", on)
	}
	if up := cal.Upcoming(day, domain.DefaultUpcomingLimit); up[0].ID != "c1" {
		t.Fatalf("completed chore still upcoming: %+v", up)
	}
	if n := cal.Add(context.Background(), core.ChoreInput{Title: " "}); !n.Failed() || api.calls != 2 {
		t.Fatalf("blank title must not reach the server: %+v calls=%d", n, api.calls)
	}
	api.err = errors.New("offline")
	if n := cal.Remove(context.Background(), "c1"); !n.Failed() || len(cal.Chores()) != 7 {
		t.Fatalf("failed remove: %+v", n)
	}
}

func TestSessionAgainstServer(t *testing.T) {
	g := testutil.NewGarden()
	srv := httptest.NewServer(httpapi.NewRouter(httpapi.Options{Service: g.Service, Images: g.Images, Gatherer: prometheus.NewRegistry()}))
	defer srv.Close()
	api := client.New(srv.URL, domain.UserID("e2b1c0de-9a8b-4c7d-8e6f-5a4b3c2d1e0f"))
	ctx := context.Background()

	favs := NewFavorites(api)
	sp := testutil.DefaultCatalog()[1]
	if n := favs.Add(ctx, sp); n.Level != NoticeSuccess {
		t.Fatalf("add: %+v", n)
	}
	if n := favs.Add(ctx, sp); n.Level != NoticeInfo {
		t.Fatalf("duplicate over HTTP: %+v", n)
	}
	if err := favs.Load(ctx); err != nil || len(favs.Items()) != 1 {
		t.Fatalf("reload: %v %+v", err, favs.Items())
	}

	denied := NewCollection(client.New(srv.URL, domain.NullUserID))
	n := denied.Add(ctx, core.PlantInput{Name: "Sage"})
	if !n.Failed() || !strings.HasPrefix(n.Message, "Permission denied") {
		t.Fatalf("null identity: %+v", n)
	}
}
