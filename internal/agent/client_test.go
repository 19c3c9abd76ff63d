package agent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agentdesk/internal/core"
)

func TestClientStatus(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/api/status" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(code)
		}))
		c, err := NewClient(srv.URL+"/", nil)
		if err != nil {
			t.Fatalf("NewClient err=%v", err)
		}
		got, err := c.Status(context.Background())
		if err != nil {
			t.Fatalf("Status err=%v", err)
		}
		if got != code {
			t.Fatalf("status = %d, want %d", got, code)
		}
		srv.Close()
	}
}

func TestClientStatusNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, nil)
	if err != nil {
		t.Fatalf("NewClient err=%v", err)
	}
	if _, err := c.Status(context.Background()); err == nil {
		t.Fatal("expected network error")
	}
}

func TestClientRunSuccess(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/agent/run" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"task":"Find a great recipe for Banoffee Pie","timestamp":"2024-01-01T00:00:00Z","output":"Recipe found.","files":[{"path":"/files/banoffee.md","name":"banoffee.md","size":2048}]}`)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	reply, err := c.Run(context.Background(), "Find a great recipe for Banoffee Pie")
	if err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if gotBody != `{"task":"Find a great recipe for Banoffee Pie"}` {
		t.Fatalf("request body = %s", gotBody)
	}
	if !reply.Success || reply.Output != "Recipe found." || reply.Timestamp != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(reply.Files) != 1 || reply.Files[0].Name != "banoffee.md" || reply.Files[0].Size != 2048 || reply.Files[0].Path != "/files/banoffee.md" {
		t.Fatalf("unexpected files %+v", reply.Files)
	}
	if got := c.FileURL(reply.Files[0].Path); got != srv.URL+"/files/banoffee.md" {
		t.Fatalf("FileURL = %q", got)
	}
}

func TestClientRunApplicationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":"agent crashed"}`)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	reply, err := c.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if reply.Success || reply.Error != "agent crashed" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if reply.Files == nil || len(reply.Files) != 0 {
		t.Fatalf("files should default to empty, got %#v", reply.Files)
	}
}

func TestClientRunTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<html>oops</html>")
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	_, err := c.Run(context.Background(), "x")
	var te *core.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != 500 {
		t.Fatalf("status code = %d", te.StatusCode)
	}
	if err.Error() != "HTTP 500: Internal Server Error" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestClientRunMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	_, err := c.Run(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "decode run response") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewClientRejectsEmptyURL(t *testing.T) {
	if _, err := NewClient("  ", nil); err == nil {
		t.Fatal("expected error for empty url")
	}
}
