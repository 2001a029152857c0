package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"closed", errors.New("connection closed"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network", errors.New("use of closed network connection"), true},
		{"wrapped", fmt.Errorf("publish: %w", errors.New("connection refused")), true},
		{"other", errors.New("precondition failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestCircuitBreaker(t *testing.T) {
	c := &Client{}

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatalf("circuit open after %d failures", maxFailures-1)
	}

	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if c.isCircuitOpen() {
		t.Fatal("circuit should allow a probe after the open timeout")
	}
	if s := atomic.LoadInt32(&c.state); s != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", s)
	}

	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("failed probe should reopen the circuit")
	}

	c.recordSuccess()
	if c.isCircuitOpen() || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Fatal("success should close the circuit and reset failures")
	}
}

func TestPublishFailsFastWhenCircuitOpen(t *testing.T) {
	c := &Client{state: StateOpen, lastFailure: time.Now()}
	ev := &TransactionEvent{Kind: EventDeleted, TransactionID: "t1"}

	err := c.PublishTransactionEvent(context.Background(), ev)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestPublishRespectsCanceledContext(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PublishTransactionEvent(ctx, &TransactionEvent{Kind: EventDeleted, TransactionID: "t1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestTransactionEventJSON(t *testing.T) {
	tx := core.Transaction{
		ID:       "t1",
		Owner:    "u1",
		Title:    "Groceries",
		Amount:   decimal.RequireFromString("42.50"),
		Type:     core.TypeExpense,
		Category: core.CategoryFoodDining,
		Date:     time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	}
	ev := NewTransactionEvent(EventCreated, tx)

	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	for _, want := range []string{`"kind":"created"`, `"owner":"u1"`, `"transactionId":"t1"`, `"category":"Food & Dining"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("json %s missing %s", data, want)
		}
	}

	got, err := TransactionEventFromJSON(data)
	if err != nil {
		t.Fatalf("TransactionEventFromJSON: %v", err)
	}
	if got.Kind != EventCreated || got.TransactionID != "t1" || got.Transaction == nil {
		t.Fatalf("decoded %+v", got)
	}
	if !got.Transaction.Amount.Equal(tx.Amount) {
		t.Errorf("amount = %s, want %s", got.Transaction.Amount, tx.Amount)
	}
}

func TestTransactionEventFromJSONRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"kind":`},
		{"unknown kind", `{"kind":"archived","transactionId":"t1"}`},
		{"missing id", `{"kind":"deleted"}`},
		{"created without record", `{"kind":"created","transactionId":"t1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TransactionEventFromJSON([]byte(tt.body)); err == nil {
				t.Fatalf("expected error for %s", tt.body)
			}
		})
	}
}
