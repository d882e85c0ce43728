package main

import (
	"reflect"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in          []string
		wantArgs    []string
		wantCommand []string
	}{
		{in: []string{"-follow", "a.log"}, wantArgs: []string{"-follow", "a.log"}},
		{in: []string{"-debug", "--", "make", "-j4"}, wantArgs: []string{"-debug"}, wantCommand: []string{"make", "-j4"}},
		{in: []string{"--"}, wantArgs: []string{}, wantCommand: []string{}},
	}
	for _, tt := range tests {
		args, command := splitCommand(tt.in)
		if !reflect.DeepEqual(args, tt.wantArgs) || !reflect.DeepEqual(command, tt.wantCommand) {
			t.Fatalf("splitCommand(%q) = %q, %q, want %q, %q", tt.in, args, command, tt.wantArgs, tt.wantCommand)
		}
	}
}
