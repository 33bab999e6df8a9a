package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond * 5)
	}
	return cond()
}

func TestDiscordPayloadShape(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewDiscordSink(server.URL)
	if err != nil {
		t.Fatalf("NewDiscordSink: %v", err)
	}
	defer sink.Close()

	if err := sink.Notify(context.Background(), Level{Value: 40, Name: "ERROR"}, "no submit2 transaction"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !waitFor(func() bool { return received != nil }, time.Second) {
		t.Fatal("discord server never received a delivery")
	}
	if received["content"] != "ERROR no submit2 transaction" {
		t.Fatalf("content = %q", received["content"])
	}
}

func TestSlackPayloadShape(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewSlackSink(server.URL)
	if err != nil {
		t.Fatalf("NewSlackSink: %v", err)
	}
	defer sink.Close()

	if err := sink.Notify(context.Background(), Level{Value: 20, Name: "INFO"}, "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !waitFor(func() bool { return received != nil }, time.Second) {
		t.Fatal("slack server never received a delivery")
	}
	if received["text"] != "INFO hello" {
		t.Fatalf("text = %q", received["text"])
	}
}

func TestTelegramPayloadShape(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d, err := newDispatcher("telegram", server.URL, renderTelegram("chat-1"), nil)
	if err != nil {
		t.Fatalf("newDispatcher: %v", err)
	}
	defer d.Close()

	if err := d.Notify(context.Background(), Level{Value: 50, Name: "CRITICAL"}, "reveal offence"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !waitFor(func() bool { return received != nil }, time.Second) {
		t.Fatal("telegram server never received a delivery")
	}
	if received["chat_id"] != "chat-1" || received["text"] != "CRITICAL reveal offence" {
		t.Fatalf("unexpected payload %+v", received)
	}
}

func TestTelegramRequiresBothCredentials(t *testing.T) {
	if _, err := NewTelegramSink("", "chat-1"); err == nil {
		t.Fatal("expected error when bot token is empty")
	}
	if _, err := NewTelegramSink("token", ""); err == nil {
		t.Fatal("expected error when chat id is empty")
	}
}

func TestGenericWebhookPayloadShape(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewGenericWebhookSink(server.URL)
	if err != nil {
		t.Fatalf("NewGenericWebhookSink: %v", err)
	}
	defer sink.Close()

	if err := sink.Notify(context.Background(), Level{Value: 30, Name: "WARNING"}, "none values present"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !waitFor(func() bool { return received != nil }, time.Second) {
		t.Fatal("generic webhook server never received a delivery")
	}
	if received["message"] != "none values present" {
		t.Fatalf("message = %v", received["message"])
	}
	if int(received["level"].(float64)) != 30 {
		t.Fatalf("level = %v", received["level"])
	}
}

func TestDispatcherRetriesOnServerError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewGenericWebhookSink(server.URL, withRetryPolicy(5, time.Millisecond*5, time.Millisecond*20))
	if err != nil {
		t.Fatalf("NewGenericWebhookSink: %v", err)
	}
	defer sink.Close()

	if err := sink.Notify(context.Background(), Level{Value: 40, Name: "ERROR"}, "retry me"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, time.Second) {
		t.Fatalf("expected at least 3 attempts, got %d", atomic.LoadInt32(&attempts))
	}
}

func TestMultiSinkFansOutAndSkipsNil(t *testing.T) {
	var aCount, bCount int32
	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&aCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer serverA.Close()
	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&bCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer serverB.Close()

	a, _ := NewDiscordSink(serverA.URL)
	b, _ := NewSlackSink(serverB.URL)
	defer a.Close()
	defer b.Close()

	multi := NewMultiSink(a, nil, b)
	if multi.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (nil sink should be skipped)", multi.Len())
	}

	if err := multi.Notify(context.Background(), Level{Value: 20, Name: "INFO"}, "fan out"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !waitFor(func() bool { return atomic.LoadInt32(&aCount) == 1 && atomic.LoadInt32(&bCount) == 1 }, time.Second) {
		t.Fatalf("expected both sinks to receive exactly one delivery, got a=%d b=%d", aCount, bCount)
	}
}
