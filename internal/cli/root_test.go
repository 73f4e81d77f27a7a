package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{
			name: "stamped",
			info: BuildInfo{Version: "v1.2.0", Commit: "abc1234", Date: "2026-09-01"},
			want: "v1.2.0 (commit: abc1234, built: 2026-09-01)",
		},
		{
			name: "unstamped",
			info: BuildInfo{},
			want: "dev (commit: unknown, built: unknown)",
		},
		{
			name: "version only",
			info: BuildInfo{Version: "v0.3.1"},
			want: "v0.3.1 (commit: unknown, built: unknown)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, formatVersion(tc.info))
		})
	}
}

func TestSetBuildInfo(t *testing.T) {
	orig, origVersion := buildInfo, rootCmd.Version
	t.Cleanup(func() { buildInfo, rootCmd.Version = orig, origVersion })

	SetBuildInfo(BuildInfo{Version: "v9.9.9"})
	assert.Equal(t, "v9.9.9", buildInfo.Version)
	assert.Equal(t, "v9.9.9 (commit: unknown, built: unknown)", rootCmd.Version)
}

func TestColorEnabled(t *testing.T) {
	assert.True(t, colorEnabled("always"))
	assert.True(t, colorEnabled("ALWAYS"))
	assert.False(t, colorEnabled("never"))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: avatarerr.ExitSuccess},
		{name: "plain", err: errors.New("boom"), want: avatarerr.ExitGeneral},
		{name: "input", err: avatarerr.ErrInvalidInput, want: avatarerr.ExitInput},
		{name: "address", err: avatarerr.ErrInvalidAddress, want: avatarerr.ExitInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}
