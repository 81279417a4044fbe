package tours

import "testing"

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustTourID(t *testing.T, value string) TourID {
	t.Helper()
	id, err := NewTourID(value)
	if err != nil {
		t.Fatalf("unexpected tour id error: %v", err)
	}
	return id
}

func mustStopID(t *testing.T, value string) StopID {
	t.Helper()
	id, err := NewStopID(value)
	if err != nil {
		t.Fatalf("unexpected stop id error: %v", err)
	}
	return id
}
