package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{name: "plain", input: "0.4.2", want: Version{Major: 0, Minor: 4, Patch: 2}},
		{name: "v prefix", input: "v1.2.3", want: Version{Major: 1, Minor: 2, Patch: 3}},
		{name: "pre-release", input: "0.4.2-alpha.1", want: Version{Major: 0, Minor: 4, Patch: 2, Pre: "alpha.1"}},
		{name: "trailing newline", input: "0.4.2\n", want: Version{Major: 0, Minor: 4, Patch: 2}},
		{name: "build metadata stripped", input: "0.4.2-rc1+abcdef", want: Version{Major: 0, Minor: 4, Patch: 2, Pre: "rc1"}},
		{name: "build metadata with dash", input: "0.4.2+build-5", want: Version{Major: 0, Minor: 4, Patch: 2}},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "  \n", wantErr: true},
		{name: "garbage", input: "not-a-version", wantErr: true},
		{name: "missing patch", input: "1.2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "0.4.2", Version{Major: 0, Minor: 4, Patch: 2}.String())
	assert.Equal(t, "1.0.0-beta", Version{Major: 1, Patch: 0, Pre: "beta"}.String())
}

func TestNeedsUpdate(t *testing.T) {
	required := Version{Major: 0, Minor: 4, Patch: 2}

	tests := []struct {
		name      string
		installed string
		want      bool
	}{
		{name: "exact match", installed: "0.4.2", want: false},
		{name: "exact match with v", installed: "v0.4.2", want: false},
		{name: "build metadata ignored", installed: "0.4.2+build-5", want: false},
		{name: "major differs", installed: "1.4.2", want: true},
		{name: "minor differs", installed: "0.5.2", want: true},
		{name: "patch differs", installed: "0.4.3", want: true},
		{name: "pre-release differs", installed: "0.4.2-alpha", want: true},
		{name: "newer is still a mismatch", installed: "0.9.0", want: true},
		{name: "empty output", installed: "", want: true},
		{name: "unparseable output", installed: "error: no such flag", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsUpdate(tt.installed, required))
		})
	}
}

func TestNeedsUpdatePreReleaseRequired(t *testing.T) {
	required := Version{Major: 0, Minor: 5, Patch: 0, Pre: "rc.2"}

	assert.False(t, NeedsUpdate("0.5.0-rc.2", required))
	assert.True(t, NeedsUpdate("0.5.0", required))
	assert.True(t, NeedsUpdate("0.5.0-rc.1", required))
}
