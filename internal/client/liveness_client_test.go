package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/streams/s1/status" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"live":true}`)
	}))
	defer srv.Close()

	c := NewLivenessClient(srv.URL, 2*time.Second)

	if !c.IsLive(context.Background(), "s1") {
		t.Fatalf("expected live")
	}
	if c.IsLive(context.Background(), "other") {
		t.Fatalf("404 must report not live")
	}
}

func TestIsLiveTimeoutReportsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `{"live":true}`)
	}))
	defer srv.Close()

	c := NewLivenessClient(srv.URL, 50*time.Millisecond)
	if c.IsLive(context.Background(), "s1") {
		t.Fatalf("timeout must report not live")
	}
}

func TestIsLiveUnreachableReportsFalse(t *testing.T) {
	c := NewLivenessClient("http://127.0.0.1:1", 100*time.Millisecond)
	if c.IsLive(context.Background(), "s1") {
		t.Fatalf("unreachable endpoint must report not live")
	}
}
