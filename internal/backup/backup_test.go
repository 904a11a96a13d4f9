package backup

import (
	"testing"
	"time"
)

func TestObjectKeySortsChronologically(t *testing.T) {
	early := ObjectKey(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	late := ObjectKey(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))

	if early >= late {
		t.Fatalf("keys must sort chronologically: %s !< %s", early, late)
	}
	if early != "snapshots/2026-08-30T09-00-00Z.json" {
		t.Fatalf("unexpected key format: %s", early)
	}
}

func TestObjectKeyNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	local := ObjectKey(time.Date(2026, 8, 30, 11, 0, 0, 0, loc))
	utc := ObjectKey(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	if local != utc {
		t.Fatalf("expected %s, got %s", utc, local)
	}
}
