package main

import (
	"errors"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcondev/pdf-daemon/internal/sumatra"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitPrinted, exitCode(sumatra.OutcomeCompleted, nil))
	assert.Equal(t, exitTimedOut, exitCode(sumatra.OutcomeTimedOut, nil))
	assert.Equal(t, exitFailed, exitCode(sumatra.OutcomeCompleted, errors.New("boom")))
}

func TestBuildOptions(t *testing.T) {
	two, zero := uint(2), uint(0)
	tests := []struct {
		name string
		args printOnceArgs
		want string
	}{
		{"default printer", printOnceArgs{File: "a.pdf"}, `-s -print-to "Office" "a.pdf"`},
		{"explicit printer", printOnceArgs{File: "a.pdf", Printer: "P2"}, `-s -print-to "P2" "a.pdf"`},
		{"copies", printOnceArgs{File: "a.pdf", Copies: &two}, `-s -print-to "Office" -print-settings "2x" "a.pdf"`},
		{"zero copies", printOnceArgs{File: "a.pdf", Copies: &zero}, `-s -print-to "Office" -print-settings "0x" "a.pdf"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildOptions(tt.args, "Office").ArgumentString())
		})
	}
}

func TestFlagGiven(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Uint("copies", 0, "")
	fs.String("printer", "", "")
	require.NoError(t, fs.Parse([]string{"-copies", "0"}))

	assert.True(t, flagGiven(fs, "copies"))
	assert.False(t, flagGiven(fs, "printer"))
}
