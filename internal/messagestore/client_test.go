package messagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
	t.Cleanup(s.Close)
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func sequenceServer(t *testing.T, statuses []int, headers []http.Header) (*ipv4Server, *int32) {
	t.Helper()
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&calls, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(statuses[i])
		if statuses[i] == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"accession":   r.URL.Query().Get("accession"),
				"result_test": r.URL.Query().Get("result_test"),
				"message":     "MSH|^~\\&|LAB\rOBX|1|ST|" + r.URL.Query().Get("result_test"),
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "try later", "code": "busy"}})
	}))
	return srv, &calls
}

func TestFetchMessage(t *testing.T) {
	var gotAuth string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Query().Get("accession") != "ACC 1" {
			t.Errorf("unexpected accession query: %q", r.URL.RawQuery)
		}
		w.Header().Set("X-Request-Id", "req_1")
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "MSH|body"})
	}))

	c, err := NewClient(srv.URL+"/", "secret", 2*time.Second, 1, 0, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	m, err := c.FetchMessage(context.Background(), "ACC 1", "Culture")
	if err != nil {
		t.Fatalf("FetchMessage: %v", err)
	}
	if m.Body != "MSH|body" || m.Accession != "ACC 1" || m.RequestID != "req_1" {
		t.Fatalf("unexpected message: %+v", m)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
}

func TestFetchMessageRetriesOn503(t *testing.T) {
	srv, calls := sequenceServer(t, []int{503, 503, 200}, nil)
	c, _ := NewClient(srv.URL, "", 2*time.Second, 3, 5*time.Millisecond, 20*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := c.FetchMessage(ctx, "A1", "PCR")
	if err != nil {
		t.Fatalf("FetchMessage: %v", err)
	}
	if !strings.Contains(m.Body, "OBX|1|ST|PCR") {
		t.Fatalf("unexpected body: %q", m.Body)
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Fatalf("expected 3 calls, got %d", n)
	}
}

func TestFetchMessageServerErrorAfterRetries(t *testing.T) {
	srv, calls := sequenceServer(t, []int{500}, nil)
	c, _ := NewClient(srv.URL, "", 2*time.Second, 2, time.Millisecond, 5*time.Millisecond)
	_, err := c.FetchMessage(context.Background(), "A1", "")
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if se.Code != "busy" {
		t.Fatalf("expected decoded code, got %+v", se.APIError)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	srv, _ := sequenceServer(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}})
	c, _ := NewClient(srv.URL, "", 5*time.Second, 3, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := c.FetchMessage(ctx, "A1", ""); err != nil {
		t.Fatalf("FetchMessage: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected ~1s delay from Retry-After, got %v", elapsed)
	}
}

func TestRetryAfterCappedAtMaxDelay(t *testing.T) {
	srv, hits := sequenceServer(t, []int{429, 200}, []http.Header{{"Retry-After": {"30"}}})
	c, _ := NewClient(srv.URL, "", 5*time.Second, 3, time.Millisecond, 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := c.FetchMessage(ctx, "A1", ""); err != nil {
		t.Fatalf("FetchMessage: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Retry-After of 30s was not capped at 50ms, took %v", elapsed)
	}
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestFetchMessageClassifiesFinalErrors(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{http.StatusForbidden, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{http.StatusNotFound, func(err error) bool { var e *NotFoundError; return errors.As(err, &e) && e.Accession == "A9" }},
		{http.StatusBadRequest, func(err error) bool { var e *APIError; return errors.As(err, &e) && e.StatusCode == 400 }},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv, calls := sequenceServer(t, []int{tc.status}, nil)
			c, _ := NewClient(srv.URL, "", 2*time.Second, 3, time.Millisecond, time.Millisecond)
			_, err := c.FetchMessage(context.Background(), "A9", "")
			if !tc.check(err) {
				t.Fatalf("unexpected error %T: %v", err, err)
			}
			if n := atomic.LoadInt32(calls); n != 1 {
				t.Fatalf("final errors must not retry, got %d calls", n)
			}
		})
	}
}

func TestFetchMessageUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: cannot open local listener (%v)", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c, _ := NewClient("http://"+addr, "", time.Second, 1, 0, 0)
	_, err = c.FetchMessage(context.Background(), "A1", "")
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(" ", "", 0, 0, 0, 0); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if s, err := parseRetryAfterSeconds("7"); err != nil || s != 7 {
		t.Fatalf("got %d, %v", s, err)
	}
	if _, err := parseRetryAfterSeconds("soon"); err == nil {
		t.Fatal("expected error")
	}
}
