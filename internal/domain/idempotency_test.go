package domain

import (
	"testing"
	"time"
)

func TestIdempotencyStatusValid(t *testing.T) {
	tests := []struct {
		name     string
		status   IdempotencyStatus
		valid    bool
		terminal bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, valid: true, terminal: false},
		{name: "done", status: IdempotencyStatusDone, valid: true, terminal: true},
		{name: "failed", status: IdempotencyStatusFailed, valid: true, terminal: true},
		{name: "invalid", status: IdempotencyStatus("broken"), valid: false, terminal: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.valid {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.valid)
			}
			if got := tc.status.Terminal(); got != tc.terminal {
				t.Fatalf("status %q terminal=%v, want %v", tc.status, got, tc.terminal)
			}
		})
	}
}

func TestIdempotencyRecordExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	record := IdempotencyRecord{TTLAt: now.Add(time.Minute)}
	if record.Expired(now) {
		t.Fatal("record must not be expired before ttl")
	}
	if !record.Expired(now.Add(time.Minute)) {
		t.Fatal("record must be expired at ttl")
	}
}
