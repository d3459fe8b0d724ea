package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/httpapi"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
)

func TestHealthEndpoints(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	down := httpapi.Check{Name: "cache", Fn: func(context.Context) error { return errors.New("down") }}

	tests := []struct {
		name       string
		mux        *http.ServeMux
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			mux:        newMux(api),
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200",
			mux:        newMux(api),
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   "{\"status\":\"ready\"}\n",
		},
		{
			name:       "readyz returns 503 when a check fails",
			mux:        newMux(api, down),
			path:       "/readyz",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "api routes reach the api handler",
			mux:        newMux(api),
			path:       "/api/courses",
			wantStatus: http.StatusTeapot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			tt.mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		logger := newLogger(config.LogConfig{Level: tt.level, Format: "text"})
		if !logger.Enabled(context.Background(), tt.want) {
			t.Errorf("newLogger(%q) not enabled at %v", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-1) {
			t.Errorf("newLogger(%q) enabled below %v", tt.level, tt.want)
		}
	}
}
