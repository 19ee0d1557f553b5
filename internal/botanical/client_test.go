package botanical

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gardenkeep/pkg/domain"
)

func pageOf(start, n int) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(`{"id":%d,"scientific_name":"Species %d"}`, start+i, start+i))
	}
	return `{"data":[` + strings.Join(items, ",") + `]}`
}

func TestSearchTranslatesQuery(t *testing.T) {
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.String())
		if r.URL.Path != "/plants/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":1,"scientific_name":" Ficus lyrata ","common_name":"Fiddle-leaf fig","family":"Moraceae","year":1894,"image_url":""}]}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL+"/"))
	results, err := c.Search(context.Background(), domain.SpeciesQuery{Query: "ficus", Family: "Moraceae", CommonName: "fig"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	raw := seen.Load().(string)
	for _, want := range []string{"q=ficus", "token=secret", "filter%5Bfamily%5D=Moraceae", "filter%5Bcommon_name%5D=fig"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("request %s missing %s", raw, want)
		}
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	got := results[0]
	if got.ID != "1" || got.ScientificName != "Ficus lyrata" || domain.Deref(got.CommonName) != "Fiddle-leaf fig" {
		t.Fatalf("unexpected normalization %+v", got)
	}
	if got.Year == nil || *got.Year != 1894 || got.ImageURL != nil {
		t.Fatalf("unexpected optional fields %+v", got)
	}
}

func TestSearchWithoutTextUsesListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plants" || r.URL.Query().Get("q") != "" {
			t.Errorf("filters alone should hit the listing, got %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()
	results, err := NewClient("t", WithBaseURL(srv.URL)).Search(context.Background(), domain.SpeciesQuery{ScientificName: "Rosa"})
	if err != nil || results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v (%v)", results, err)
	}
}

func TestSearchPagination(t *testing.T) {
	var pages []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			page, _ = strconv.Atoi(p)
		}
		pages = append(pages, page)
		_, _ = w.Write([]byte(pageOf((page-1)*PageSize, PageSize)))
	}))
	defer srv.Close()

	results, err := NewClient("t", WithBaseURL(srv.URL)).Search(context.Background(), domain.SpeciesQuery{Query: "rose", Offset: 25, Limit: 20})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 20 || results[0].ID != "25" || results[19].ID != "44" {
		t.Fatalf("unexpected window: %d results starting %s", len(results), results[0].ID)
	}
	if len(pages) != 2 || pages[0] != 2 || pages[1] != 3 {
		t.Fatalf("expected pages 2 and 3, got %v", pages)
	}
}

func TestMissingTokenFailsBeforeNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { atomic.AddInt32(&hits, 1) }))
	defer srv.Close()
	c := NewClient("  ", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), domain.SpeciesQuery{Query: "x"})
	var cfg *domain.ConfigError
	if !errors.As(err, &cfg) || cfg.Setting != TokenSetting {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, err := c.GetByID(context.Background(), "1"); !domain.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("no request may be sent without a token")
	}
}

func TestGetByIDErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plants/ficus-lyrata":
			_, _ = w.Write([]byte(`{"data":{"id":"ficus-lyrata","scientific_name":"Ficus lyrata","main_species":{"images":{"leaf":[{"image_url":"https://img/leaf.jpg"}]},"growth":{"light":8,"minimum_temperature":{"deg_c":10},"maximum_temperature":{"deg_c":32.5}}}}}`))
		case "/plants/404":
			http.Error(w, `{"error":true,"message":"Record not found"}`, http.StatusNotFound)
		default:
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()
	c := NewClient("t", WithBaseURL(srv.URL))

	s, err := c.GetByID(context.Background(), "ficus-lyrata")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if domain.Deref(s.ImageURL) != "https://img/leaf.jpg" || domain.Deref(s.LightRequirements) != "full sun" || domain.Deref(s.TemperatureRange) != "10 to 32.5 °C" {
		t.Fatalf("unexpected enrichment %+v", s)
	}

	if _, err := c.GetByID(context.Background(), "404"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = c.GetByID(context.Background(), "7")
	var up *UpstreamError
	if !errors.As(err, &up) || up.Status != http.StatusTooManyRequests || !strings.Contains(up.Message, "rate limited") {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("429 must not read as not found")
	}
}

func TestTimeoutAndRedaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	_, err := NewClient("very-secret", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond)).GetByID(context.Background(), "1")
	if err == nil {
		t.Fatalf("expected timeout")
	}
	if strings.Contains(err.Error(), "very-secret") {
		t.Fatalf("token leaked in error: %v", err)
	}
}
