package mode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   Mode
		wantOK bool
	}{
		{"LOCAL_ONLY", LocalOnly, true},
		{" double_write ", DoubleWrite, true},
		{"API_ONLY", APIOnly, true},
		{"API_READ_FALLBACK_LOCAL", APIReadFallback, true},
		{"api_read_fallback", APIReadFallback, true},
		{"", "", false},
		{"SOMETIMES", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeOrdering(t *testing.T) {
	assert.Less(t, LocalOnly.Level(), DoubleWrite.Level())
	assert.Less(t, DoubleWrite.Level(), APIOnly.Level())

	assert.False(t, LocalOnly.Pulls())
	assert.False(t, LocalOnly.Pushes())
	assert.True(t, DoubleWrite.Pushes())
	assert.True(t, APIOnly.Pushes())
	assert.True(t, APIReadFallback.Pulls())
	assert.False(t, APIReadFallback.Pushes())
	assert.True(t, APIOnly.ServerPrimary())
	assert.False(t, DoubleWrite.ServerPrimary())
}

func TestDefaultFor(t *testing.T) {
	tests := map[string]Mode{
		"http://localhost:3001":        DoubleWrite,
		"http://127.0.0.1:8080/":       DoubleWrite,
		"https://hotel.local":          DoubleWrite,
		"https://api.example.com":      APIOnly,
		"https://LOCALHOST.example.io": APIOnly,
		"":                             LocalOnly,
	}
	for base, want := range tests {
		assert.Equal(t, want, DefaultFor(base), base)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		override   string
		stored     string
		envDefault Mode
		want       Resolution
	}{
		{"override wins", "LOCAL_ONLY", "API_ONLY", DoubleWrite,
			Resolution{Mode: LocalOnly, Source: SourceOverride, Persist: true}},
		{"stored beats default", "", "API_ONLY", DoubleWrite,
			Resolution{Mode: APIOnly, Source: SourceStored}},
		{"default", "", "", APIOnly,
			Resolution{Mode: APIOnly, Source: SourceDefault}},
		{"unknown override falls through", "bogus", "API_ONLY", DoubleWrite,
			Resolution{Mode: APIOnly, Source: SourceStored}},
		{"unknown stored falls through", "", "bogus", DoubleWrite,
			Resolution{Mode: DoubleWrite, Source: SourceDefault}},
		{"stored deprecated is upgraded", "", "API_READ_FALLBACK_LOCAL", APIOnly,
			Resolution{Mode: DoubleWrite, Source: SourceStored, Upgraded: true, Persist: true}},
		{"explicit deprecated is kept", "API_READ_FALLBACK", "API_ONLY", APIOnly,
			Resolution{Mode: APIReadFallback, Source: SourceOverride, Persist: true}},
		{"no default", "", "", "",
			Resolution{Mode: LocalOnly, Source: SourceDefault}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.override, tt.stored, tt.envDefault))
		})
	}
}

type memPrefs struct {
	stored string
	writes int
}

func (p *memPrefs) StoredMode(context.Context) (string, error) { return p.stored, nil }

func (p *memPrefs) SetStoredMode(_ context.Context, m Mode) error {
	p.stored = string(m)
	p.writes++
	return nil
}

func TestResolveStored(t *testing.T) {
	ctx := context.Background()

	prefs := &memPrefs{stored: "API_READ_FALLBACK"}
	res, err := ResolveStored(ctx, prefs, "", APIOnly)
	require.NoError(t, err)
	assert.Equal(t, DoubleWrite, res.Mode)
	assert.Equal(t, "DOUBLE_WRITE", prefs.stored, "upgrade is persisted")

	res, err = ResolveStored(ctx, prefs, "", APIOnly)
	require.NoError(t, err)
	assert.Equal(t, DoubleWrite, res.Mode)
	assert.Equal(t, 1, prefs.writes, "a plain stored value is not rewritten")

	res, err = ResolveStored(ctx, prefs, "local_only", APIOnly)
	require.NoError(t, err)
	assert.Equal(t, LocalOnly, res.Mode)
	assert.Equal(t, "LOCAL_ONLY", prefs.stored)
}
