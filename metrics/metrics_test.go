package metrics

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	s := GetSnapshot()

	IncSubmission("woman")
	IncValidationFailed()
	IncDeliveryFailed()
	IncDeletion()
	IncLookup()
	AddPurged(3, time.Unix(123456789, 0))

	s2 := GetSnapshot()
	if s2.Submissions != s.Submissions+1 {
		t.Fatalf("expected submissions to increment by 1, got %d", s2.Submissions)
	}
	if s2.ValidationFailed != s.ValidationFailed+1 {
		t.Fatalf("expected validation_failed to increment by 1, got %d", s2.ValidationFailed)
	}
	if s2.DeliveriesFailed != s.DeliveriesFailed+1 {
		t.Fatalf("expected deliveries_failed to increment by 1, got %d", s2.DeliveriesFailed)
	}
	if s2.Deletions != s.Deletions+1 {
		t.Fatalf("expected deletions to increment by 1, got %d", s2.Deletions)
	}
	if s2.Lookups != s.Lookups+1 {
		t.Fatalf("expected lookups to increment by 1, got %d", s2.Lookups)
	}
	if s2.Purged != s.Purged+3 {
		t.Fatalf("expected purged to increase by 3, got %d", s2.Purged)
	}
	if s2.LastPurge != 123456789 {
		t.Fatalf("expected last purge 123456789, got %d", s2.LastPurge)
	}
	if s2.LastPurgeHuman != "1973-11-29T21:33:09Z" {
		t.Fatalf("unexpected LastPurgeHuman %q", s2.LastPurgeHuman)
	}
}

func TestPromHandlerExposesCollectors(t *testing.T) {
	IncSubmission("child")
	ObserveRequest("/api/preview", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	PromHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`healthintake_submissions_total{type="child"}`,
		`healthintake_http_requests_total{code="200",route="/api/preview"}`,
		"healthintake_http_request_duration_seconds_bucket",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %s in metrics output", want)
		}
	}
}

func TestJSONHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics.json", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var s StatsSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
}
