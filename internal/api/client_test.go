package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidtranslate/internal/services"
)

func TestClientSubmitSendsBodyAndToken(t *testing.T) {
	var got SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Fatalf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(JobResponse{Job: JobReport{ID: "j1", Status: "queued"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	report, err := client.Submit(context.Background(), SubmitRequest{SourcePath: "/v/clip.mp4", TargetLanguage: "es", PreserveVoice: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if report.ID != "j1" || report.Status != "queued" {
		t.Fatalf("unexpected report %+v", report)
	}
	if got.SourcePath != "/v/clip.mp4" || got.TargetLanguage != "es" || !got.PreserveVoice {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestClientErrorsUnwrapToMarkers(t *testing.T) {
	tests := []struct {
		name   string
		status int
		marker error
	}{
		{"not found", http.StatusNotFound, services.ErrNotFound},
		{"bad request", http.StatusBadRequest, services.ErrValidation},
		{"unauthorized", http.StatusUnauthorized, services.ErrConfiguration},
		{"server error", http.StatusInternalServerError, services.ErrTransient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "boom", Kind: "x"})
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "").Job(context.Background(), "missing")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.Message != "boom" || httpErr.StatusCode != tc.status {
				t.Fatalf("unexpected error %#v", err)
			}
		})
	}
}

func TestClientJobsPassesStatusFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statuses := r.URL.Query()["status"]
		if len(statuses) != 2 || statuses[0] != "queued" || statuses[1] != "running" {
			t.Fatalf("unexpected status filter %v", statuses)
		}
		_ = json.NewEncoder(w).Encode(JobListResponse{Jobs: []JobReport{{ID: "a"}, {ID: "b"}}})
	}))
	defer srv.Close()

	jobs, err := NewClient(srv.URL+"/", "").Jobs(context.Background(), "queued", " ", "running")
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestBaseURLFromBind(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:7487":       "http://127.0.0.1:7487",
		"0.0.0.0:7487":         "http://127.0.0.1:7487",
		":7487":                "http://127.0.0.1:7487",
		"http://example.test/": "http://example.test",
		"[::]:9000":            "http://127.0.0.1:9000",
		"media.local:8080":     "http://media.local:8080",
	}
	for bind, want := range tests {
		if got := BaseURLFromBind(bind); got != want {
			t.Fatalf("BaseURLFromBind(%q) = %q, want %q", bind, got, want)
		}
	}
}
