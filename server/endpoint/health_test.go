package endpoint_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aphorist/aphorist/server/endpoint"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveHealth(checks map[string]endpoint.CheckFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/health", endpoint.Health("testsvc", checks))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))
	return rr
}

func TestHealth_AllHealthy(t *testing.T) {
	rr := serveHealth(map[string]endpoint.CheckFunc{
		"redis": func(_ context.Context) error { return nil },
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Status     string            `json:"status"`
		Service    string            `json:"service"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Status != "healthy" || resp.Service != "testsvc" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Components["redis"] != "healthy" {
		t.Fatalf("expected redis healthy, got %q", resp.Components["redis"])
	}
}

func TestHealth_FailingCheck(t *testing.T) {
	rr := serveHealth(map[string]endpoint.CheckFunc{
		"redis": func(_ context.Context) error { return errors.New("connection refused") },
	})

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Fatalf("expected unhealthy, got %s", resp.Status)
	}
}

func TestHealth_NoChecks(t *testing.T) {
	rr := serveHealth(nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with no checks, got %d", rr.Code)
	}
}
