package cli

import (
	"testing"
)

func TestNewRoot(t *testing.T) {
	cmd := NewRoot()

	if cmd == nil {
		t.Fatal("Expected non-nil command")
	}

	if cmd.Use != "backfill" {
		t.Errorf("Expected Use to be 'backfill', got %s", cmd.Use)
	}

	wantSubcommands := []string{"init", "create", "run", "status", "subjects", "version"}
	for _, name := range wantSubcommands {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := newRunCmd()

	if cmd.Flags().Lookup("target-date") == nil {
		t.Error("Expected --target-date flag to be registered")
	}
	if cmd.Flags().Lookup("workers") == nil {
		t.Error("Expected --workers flag to be registered")
	}
}

func TestCreateCommandFlags(t *testing.T) {
	cmd := newCreateCmd()

	if cmd.Flags().Lookup("archive-dir") == nil {
		t.Error("Expected --archive-dir flag to be registered")
	}
	if cmd.Flags().Lookup("journal-dir") == nil {
		t.Error("Expected --journal-dir flag to be registered")
	}
}

func TestStatusCommandFlags(t *testing.T) {
	cmd := newStatusCmd()

	if cmd.Flags().Lookup("json") == nil {
		t.Error("Expected --json flag to be registered")
	}
}

func TestCommandsHaveRunE(t *testing.T) {
	for _, cmd := range []struct {
		name string
		runE bool
	}{
		{"init", newInitCmd().RunE != nil},
		{"create", newCreateCmd().RunE != nil},
		{"run", newRunCmd().RunE != nil},
		{"status", newStatusCmd().RunE != nil},
		{"subjects", newSubjectsCmd().RunE != nil},
	} {
		if !cmd.runE {
			t.Errorf("%s command missing RunE function", cmd.name)
		}
	}
}
