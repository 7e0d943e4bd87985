package archive

import (
	"testing"
	"time"
)

func TestElementUpdateAppendsOnChange(t *testing.T) {
	e := NewElement(nil, "A")

	e.Update(nil, "B")

	if got := e.Current(); got != "B" {
		t.Errorf("Current() = %q, want %q", got, "B")
	}
	if len(e) != 2 {
		t.Errorf("history length = %d, want 2", len(e))
	}
}

func TestElementUpdateRepeatIsNoop(t *testing.T) {
	e := NewElement(nil, int64(100))

	e.Update(nil, 100)
	e.Update(nil, 100)

	if len(e) != 1 {
		t.Errorf("history length = %d, want 1", len(e))
	}
}

func TestElementNeverReorders(t *testing.T) {
	e := NewElement(nil, "first")
	e.Update(nil, "second")
	e.Update(nil, "third")
	e.Update(nil, "second")

	want := []string{"first", "second", "third", "second"}
	if len(e) != len(want) {
		t.Fatalf("history length = %d, want %d", len(e), len(want))
	}
	for i, entry := range e {
		if entry.Value != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, entry.Value, want[i])
		}
	}
}

func TestElementCurrentEmpty(t *testing.T) {
	var e Element[bool]

	if got := e.Current(); got != false {
		t.Errorf("Current() on empty element = %v, want false", got)
	}
}

func TestElementExplicitTimestamp(t *testing.T) {
	at := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewElement(&at, "hello")

	if !e[0].Time.Equal(at) {
		t.Errorf("entry time = %v, want %v", e[0].Time, at)
	}
}

func TestElementChanged(t *testing.T) {
	e := NewElement(nil, "A")
	if e.Changed() {
		t.Error("Changed() = true for single-entry history, want false")
	}

	e.Update(nil, "B")
	if !e.Changed() {
		t.Error("Changed() = false after a value change, want true")
	}
}
