package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/bill-extractor/internal/config"
)

const ingestOneRecord = `{"Records":[{"s3":{"bucket":{"name":"bills"},"object":{"key":"k.pdf"}}}]}`

func TestRateLimitRejectsBeforePipelineRuns(t *testing.T) {
	pipeline := &pipelineFake{}
	handler := NewRouter(config.Config{
		APIRateLimitRPS:   0.5,
		APIRateLimitBurst: 1,
	}, pipeline, nil, RouterOptions{}).Handler()

	if res := postJSON(t, handler, "/v1/events/ingest", ingestOneRecord); res.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res.Code)
	}

	res := postJSON(t, handler, "/v1/events/ingest", ingestOneRecord)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res.Code)
	}
	if got := res.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2 for 0.5 rps, got %q", got)
	}
	body := decodeBody(t, res)
	if body["kind"] != "rate_limited" || body["error"] != "rate limit exceeded" {
		t.Fatalf("unexpected 429 body %v", body)
	}
	if len(pipeline.events) != 1 {
		t.Fatalf("expected rejected request to skip the pipeline, got %d runs", len(pipeline.events))
	}
}

func TestRateLimitDisabledWithoutRPS(t *testing.T) {
	handler := NewRouter(config.Config{APIRateLimitBurst: 1}, nil, nil, RouterOptions{}).Handler()
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i, res.Code)
		}
	}
}

func TestBackpressureReturns503WithRetryAfter(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/events/ingest", nil))
		done <- res.Code
	}()
	<-started

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/events/ingest", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated gate, got %d", res.Code)
	}
	if got := res.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After rounded up to 1, got %q", got)
	}
	body := decodeBody(t, res)
	if body["kind"] != "overloaded" || body["error"] != "server is busy, retry later" {
		t.Fatalf("unexpected 503 body %v", body)
	}

	close(release)
	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("in-flight request expected 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for in-flight request")
	}
}

func TestBackpressureAdmitsWaiterWhenSlotFrees(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, time.Second)

	first := make(chan int, 1)
	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		first <- res.Code
	}()
	<-started

	second := make(chan int, 1)
	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		second <- res.Code
	}()

	close(release)
	for name, ch := range map[string]chan int{"first": first, "second": second} {
		select {
		case code := <-ch:
			if code != http.StatusNoContent {
				t.Fatalf("%s request expected 204, got %d", name, code)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s request", name)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "1",
		250 * time.Millisecond:  "1",
		time.Second:             "1",
		1500 * time.Millisecond: "2",
		2 * time.Second:         "2",
	}
	for in, want := range cases {
		if got := retryAfterSeconds(in); got != want {
			t.Fatalf("retryAfterSeconds(%s) = %q, want %q", in, got, want)
		}
	}
}
