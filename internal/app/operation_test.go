package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	start := time.Date(2024, 4, 1, 19, 5, 7, 0, time.FixedZone("EDT", -4*3600))
	op := NewOperation("Render", start)

	if op.ID != "20240401T230507Z" {
		t.Errorf("ID = %q, want UTC start timestamp", op.ID)
	}
	if op.Name != "Render" {
		t.Errorf("Name = %q, want Render", op.Name)
	}
	if op.Status != "success" || op.Err != nil {
		t.Errorf("new operation status = %q err = %v", op.Status, op.Err)
	}
	if got := op.Elapsed(start.Add(3 * time.Second)); got != 3*time.Second {
		t.Errorf("Elapsed() = %v, want 3s", got)
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("AddSwing", time.Now())

	op.Fail(nil)
	if op.Status != "success" {
		t.Errorf("Fail(nil) changed status to %q", op.Status)
	}

	first := errors.New("source load")
	op.Fail(first)
	op.Fail(errors.New("later"))
	if op.Status != "error" {
		t.Errorf("Status = %q, want error", op.Status)
	}
	if op.Err != first {
		t.Errorf("Err = %v, want the first failure", op.Err)
	}
}
