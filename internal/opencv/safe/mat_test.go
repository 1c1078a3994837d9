package safe

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestNewGrayFromBytesOwnsPixels(t *testing.T) {
	pixels := []byte{1, 2, 3, 4, 5, 6}
	m, err := NewGrayFromBytes(2, 3, pixels)
	if err != nil {
		t.Fatalf("NewGrayFromBytes: %v", err)
	}
	defer m.Close()

	pixels[0] = 99
	v, err := m.GetUCharAt(0, 0)
	if err != nil {
		t.Fatalf("GetUCharAt: %v", err)
	}
	if v != 1 {
		t.Errorf("Mat shares caller buffer: got %d, want 1", v)
	}
	if m.Rows() != 2 || m.Cols() != 3 {
		t.Errorf("size = %dx%d, want 3x2", m.Cols(), m.Rows())
	}
}

func TestNewGrayFromBytesRejectsShortBuffer(t *testing.T) {
	if _, err := NewGrayFromBytes(2, 2, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m, err := NewMat(4, 4, gocv.MatTypeCV8UC1)
	if err != nil {
		t.Fatalf("NewMat: %v", err)
	}
	m.Close()
	m.Close()

	if m.IsValid() {
		t.Error("Mat still valid after Close")
	}
	if !m.Empty() {
		t.Error("closed Mat should report Empty")
	}
	if err := ValidateMatForOperation(m, "test"); err == nil {
		t.Error("validation accepted a closed Mat")
	}
}

func TestValidateGrayRejectsColor(t *testing.T) {
	m, err := NewMat(4, 4, gocv.MatTypeCV8UC3)
	if err != nil {
		t.Fatalf("NewMat: %v", err)
	}
	defer m.Close()

	if err := ValidateGray(m, "threshold"); err == nil {
		t.Fatal("ValidateGray accepted a 3-channel Mat")
	}
	if err := ValidateGray(nil, "threshold"); err == nil {
		t.Fatal("ValidateGray accepted nil")
	}
}

func TestGetUCharAtBounds(t *testing.T) {
	m, err := NewGrayFromBytes(1, 1, []byte{7})
	if err != nil {
		t.Fatalf("NewGrayFromBytes: %v", err)
	}
	defer m.Close()

	if _, err := m.GetUCharAt(1, 0); err == nil {
		t.Error("expected out of bounds error")
	}
}
