package main

import "testing"

func TestRootCmd_PositionalArgs(t *testing.T) {
	for _, args := range [][]string{nil, {"config.json"}, {"config.json", "50"}} {
		if err := rootCmd.Args(rootCmd, args); err != nil {
			t.Errorf("Expected %v to be accepted: %v", args, err)
		}
	}
	if err := rootCmd.Args(rootCmd, []string{"config.json", "50", "extra"}); err == nil {
		t.Error("Expected a third positional argument to be rejected")
	}
}

func TestParseRunID(t *testing.T) {
	if id, err := parseRunID("12"); err != nil || id != 12 {
		t.Errorf("Expected 12, got %d (%v)", id, err)
	}
	for _, s := range []string{"0", "-1", "abc"} {
		if _, err := parseRunID(s); err == nil {
			t.Errorf("Expected %q to be rejected", s)
		}
	}
}
