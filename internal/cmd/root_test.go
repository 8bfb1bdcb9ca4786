package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_Help(t *testing.T) {
	var stdout bytes.Buffer

	cmd := rootCmd
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("root command --help returned error: %v", err)
	}

	output := stdout.String()
	expected := []string{"puttle", "CONNECT", "Usage:", "--proxy", "--listen-port"}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing expected string %q\nGot: %s", want, output)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	var stdout bytes.Buffer

	cmd := rootCmd
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs([]string{"--version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("root command --version returned error: %v", err)
	}
	if !strings.Contains(stdout.String(), "puttle") {
		t.Errorf("version output missing 'puttle'\nGot: %s", stdout.String())
	}
}

func TestRootCommand_MissingProxyFailsValidation(t *testing.T) {
	var stdout bytes.Buffer

	cmd := rootCmd
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an error when no -p/--proxy is given")
	}
	var exitErr *ExitCodeError
	if ee, ok := err.(*ExitCodeError); ok {
		exitErr = ee
	}
	if exitErr == nil || exitErr.Code != 1 {
		t.Errorf("expected *ExitCodeError with code 1, got %v (%T)", err, err)
	}
}
