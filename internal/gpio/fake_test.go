package gpio

import (
	"errors"
	"testing"
)

func TestFakeReaderRead(t *testing.T) {
	f := NewFakeReader(false, true, true)

	want := []bool{false, true, true, true}
	for i, w := range want {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("sample %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader()

	_, err := f.Read()
	if err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader(true)
	f.ReadError = errors.New("simulated error")

	_, err := f.Read()
	if err == nil {
		t.Error("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeReaderHold(t *testing.T) {
	f := NewFakeReader(false)
	f.Hold(2)

	want := []bool{false, true, true, false, false}
	for i, w := range want {
		got, _ := f.Read()
		if got != w {
			t.Errorf("sample %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestFakeReaderClose(t *testing.T) {
	f := NewFakeReader(true)

	if f.Closed {
		t.Error("should not be closed initially")
	}

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeReaderReset(t *testing.T) {
	f := NewFakeReader(true, false)

	f.Read()
	f.Reset()

	if got, _ := f.Read(); got != true {
		t.Errorf("after reset: expected true, got %v", got)
	}
}
