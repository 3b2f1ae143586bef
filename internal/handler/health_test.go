package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"squid-rewriter/internal/diag"
	"squid-rewriter/internal/helper"
)

func newTestLoop(t *testing.T, input string) *helper.Loop {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loop := helper.NewLoop(diag.Discard, logger, nil)
	if input != "" {
		if err := loop.Run(context.Background(), strings.NewReader(input), io.Discard); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}
	return loop
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(newTestLoop(t, ""), "test")
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/helper/status", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	loop := newTestLoop(t, "http://a\nhttps://b x\nhttp://c\n")
	h := NewHealthHandler(loop, "1.2.3")
	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := StatusResponse{Status: "ok", Version: "1.2.3", Lines: 3, Rewritten: 2, PassedThrough: 1}
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}
}
