package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestHub(t *testing.T) (*HubTask, chan HubEvent, chan RecvCommand) {
	t.Helper()

	events := make(chan HubEvent, 16)
	recvCmd := make(chan RecvCommand, 16)
	hub := NewHubTask("127.0.0.1:0", events, recvCmd, nil, testLogger(), NewMetrics(newTestRegistry()))

	go hub.loop(make(chan error))

	return hub, events, recvCmd
}

// subscribe opens an SSE connection against the Hub's ServeHTTP handler
// directly (no real listener needed) and returns the response body reader
// plus a cancel func.
func subscribe(t *testing.T, hub *HubTask) (*bufio.Reader, func()) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil)
	req.Proto = "HTTP/1.1"
	req.ProtoMajor, req.ProtoMinor = 1, 1
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		hub.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // let the subscriber register
	return bufio.NewReader(rec.Body), func() {
		cancel()
		<-done
	}
}

// TestHubPutCtlFreqForwardsCommand covers the PUT half of scenario S2: PUT
// /ctlfreq answers 200 and forwards a SetControlFreq command to the
// Receiver. It opens no subscription and does not check the SSE event.
func TestHubPutCtlFreqForwardsCommand(t *testing.T) {
	hub, events, recvCmd := newTestHub(t)

	events <- HubEvent{Kind: HubEventState, State: StateEvent{Kind: StateUpdateCtlFreq, Freq: Frequency(851_000_000)}}
	time.Sleep(10 * time.Millisecond)

	body := strings.NewReader(`{"ctlfreq": 856000000}`)
	req := httptest.NewRequest(http.MethodPut, "/ctlfreq", body)
	req.Proto = "HTTP/1.1"
	req.ProtoMajor, req.ProtoMinor = 1, 1
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /ctlfreq status = %d, want 200", rec.Code)
	}

	select {
	case cmd := <-recvCmd:
		if cmd.Kind != RecvSetControlFreq || cmd.Freq != Frequency(856_000_000) {
			t.Fatalf("forwarded command = %+v, want SetControlFreq(856000000)", cmd)
		}
	case <-time.After(time.Second):
		t.Fatalf("PUT /ctlfreq did not forward a RecvCommand")
	}
}

// TestHubSubscriberCap exercises scenario S3: the (maxSubscribers+1)'th
// subscriber is rejected with 429.
func TestHubSubscriberCap(t *testing.T) {
	hub, _, _ := newTestHub(t)

	for i := 0; i < maxSubscribers; i++ {
		_, wait := subscribe(t, hub)
		defer wait()
	}

	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil)
	req.Proto = "HTTP/1.1"
	req.ProtoMajor, req.ProtoMinor = 1, 1
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("subscriber %d status = %d, want 429", maxSubscribers+1, rec.Code)
	}
}

// TestHubOptionsCORS exercises scenario S4.
func TestHubOptionsCORS(t *testing.T) {
	hub, _, _ := newTestHub(t)

	req := httptest.NewRequest(http.MethodOptions, "/ctlfreq", nil)
	req.Proto = "HTTP/1.1"
	req.ProtoMajor, req.ProtoMinor = 1, 1
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("OPTIONS status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, PUT" {
		t.Fatalf("Access-Control-Allow-Methods = %q, want \"GET, PUT\"", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("Access-Control-Allow-Headers = %q, want \"Content-Type\"", got)
	}
}

// TestHubRejectsNonHTTP11 exercises scenario S5.
func TestHubRejectsNonHTTP11(t *testing.T) {
	hub, _, _ := newTestHub(t)

	req := httptest.NewRequest(http.MethodGet, "/ctlfreq", nil)
	req.Proto = "HTTP/1.0"
	req.ProtoMajor, req.ProtoMinor = 1, 0
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("HTTP/1.0 request status = %d, want 501", rec.Code)
	}
}

func TestHubGetCtlFreqRoundTrip(t *testing.T) {
	hub, events, _ := newTestHub(t)

	events <- HubEvent{Kind: HubEventState, State: StateEvent{Kind: StateUpdateCtlFreq, Freq: Frequency(851_000_000)}}
	time.Sleep(10 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/ctlfreq", nil)
	req.Proto = "HTTP/1.1"
	req.ProtoMajor, req.ProtoMinor = 1, 1
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req)

	var body ctlFreqBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.CtlFreq != 851_000_000 {
		t.Fatalf("ctlfreq = %d, want 851000000", body.CtlFreq)
	}
}
