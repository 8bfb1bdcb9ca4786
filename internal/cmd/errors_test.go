package cmd

import "testing"

func TestExitCodeError_Error(t *testing.T) {
	err := NewExitCodeError(1)
	if err.Error() != "exit code 1" {
		t.Errorf("Error() = %q, want %q", err.Error(), "exit code 1")
	}
}

func TestExitCodeError_CodeField(t *testing.T) {
	err := NewExitCodeError(2)
	if err.Code != 2 {
		t.Errorf("Code = %d, want 2", err.Code)
	}
}
