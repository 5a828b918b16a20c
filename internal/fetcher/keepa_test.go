package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testKeepa(baseURL string, budget int) *Keepa {
	return NewKeepa(KeepaOptions{
		BaseURL:          baseURL,
		APIKey:           "test-key",
		Timeout:          time.Second,
		UserAgent:        "test",
		CycleCallBudget:  budget,
		PagesPerCategory: 1,
		HistoryDays:      120,
		Categories:       []string{"home"},
	}, noopLogger())
}

func TestFetchHistoryMalformedASIN(t *testing.T) {
	k := testKeepa("http://localhost", 10)
	_, _, _, err := k.FetchHistory(context.Background(), "short", "home")
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("malformed asin should be a permanent failure, got %v", err)
	}
}

func TestFetchHistorySuccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("asin") != "B00TESTING" {
			t.Fatalf("unexpected asin %q", r.URL.Query().Get("asin"))
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Fatal("api key should be forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"asin":        "B00TESTING",
			"title":       "Cordless Drill",
			"brand":       "Makita",
			"salesRank":   1500,
			"rating":      45,
			"reviewCount": 320,
			"history": []map[string]any{
				{"ts": now.Add(-48 * time.Hour), "price": 9900},
				{"ts": now.Add(-24 * time.Hour), "price": 7900},
				{"ts": now.Add(-72 * time.Hour), "price": 0},
			},
		})
	}))
	defer srv.Close()

	k := testKeepa(srv.URL, 10)
	ps, sig, info, err := k.FetchHistory(context.Background(), "B00TESTING", "diy")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}

	if ps.Len() != 2 {
		t.Fatalf("zero-price sentinel should be dropped, got %d samples", ps.Len())
	}
	latest, _ := ps.Latest()
	if !latest.Price.Equal(decimal.New(7900, -2)) {
		t.Fatalf("latest price should be 79.00, got %s", latest.Price)
	}

	if sig.SalesRank == nil || *sig.SalesRank != 1500 {
		t.Fatalf("sales rank should carry through, got %v", sig.SalesRank)
	}
	if sig.Rating == nil || *sig.Rating != 4.5 {
		t.Fatalf("rating 45 should convert to 4.5 stars, got %v", sig.Rating)
	}
	if info.Title != "Cordless Drill" || info.Brand != "Makita" {
		t.Fatalf("product info not decoded: %+v", info)
	}
}

func TestFetchHistoryUnknownProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	k := testKeepa(srv.URL, 10)
	_, _, _, err := k.FetchHistory(context.Background(), "B00MISSING", "home")
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("404 should map to unknown product, got %v", err)
	}
}

func TestFetchHistoryBadRequestIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"errorType": "bad"})
	}))
	defer srv.Close()

	k := testKeepa(srv.URL, 10)
	_, _, _, err := k.FetchHistory(context.Background(), "B00TESTING", "home")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("HTTP 400 should map to upstream unavailable, got %v", err)
	}
}

func TestFetchHistoryQuotaExhausted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{"asin": "B00TESTING"})
	}))
	defer srv.Close()

	k := testKeepa(srv.URL, 2)

	for i := 0; i < 2; i++ {
		if _, _, _, err := k.FetchHistory(context.Background(), "B00TESTING", "home"); err != nil {
			t.Fatalf("call %d within budget should succeed: %v", i, err)
		}
	}

	_, _, _, err := k.FetchHistory(context.Background(), "B00TESTING", "home")
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("third call should exhaust the budget, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("exhausted budget must not reach upstream, saw %d calls", calls)
	}

	k.ResetBudget()
	if _, _, _, err := k.FetchHistory(context.Background(), "B00TESTING", "home"); err != nil {
		t.Fatalf("budget reset should allow calls again: %v", err)
	}
}

func TestCandidatesDedupAndValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"asins": []string{"B00AAAAAA1", "B00AAAAAA2", "B00AAAAAA1", "bogus", ""},
		})
	}))
	defer srv.Close()

	k := testKeepa(srv.URL, 10)
	got, err := k.Candidates(context.Background())
	if err != nil {
		t.Fatalf("candidates should succeed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 deduped valid candidates, got %d: %+v", len(got), got)
	}
	if got[0].ASIN != "B00AAAAAA1" || got[1].ASIN != "B00AAAAAA2" {
		t.Fatalf("feed order should be preserved: %+v", got)
	}
	if got[0].Category != "home" {
		t.Fatalf("candidates carry their feed category, got %q", got[0].Category)
	}
}
