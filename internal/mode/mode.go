// Package mode decides how much a client talks to the server.
package mode

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Mode is a client operating mode.
type Mode string

const (
	// LocalOnly never contacts the server.
	LocalOnly Mode = "LOCAL_ONLY"
	// DoubleWrite keeps the client primary: it pushes opportunistically and
	// pulls to catch up.
	DoubleWrite Mode = "DOUBLE_WRITE"
	// APIOnly makes the server primary: pulls overwrite local state.
	APIOnly Mode = "API_ONLY"
	// APIReadFallback is deprecated. It pulls but never pushes, and is only
	// kept when explicitly requested.
	APIReadFallback Mode = "API_READ_FALLBACK"
)

// deprecated lists the stored spellings of the read-only fallback.
var deprecated = map[string]bool{
	"API_READ_FALLBACK":       true,
	"API_READ_FALLBACK_LOCAL": true,
}

// All lists the supported modes in order of server involvement.
var All = []Mode{LocalOnly, DoubleWrite, APIOnly}

// Parse accepts any case and surrounding space. The deprecated spellings
// parse to APIReadFallback.
func Parse(v string) (Mode, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if deprecated[v] {
		return APIReadFallback, true
	}
	switch m := Mode(v); m {
	case LocalOnly, DoubleWrite, APIOnly:
		return m, true
	}
	return "", false
}

// Level orders modes by how much server interaction they imply.
func (m Mode) Level() int {
	switch m {
	case DoubleWrite, APIReadFallback:
		return 1
	case APIOnly:
		return 2
	}
	return 0
}

// Pulls reports whether the mode ever fetches the server document.
func (m Mode) Pulls() bool { return m != LocalOnly && m != "" }

// Pushes reports whether local mutations are sent to the server.
func (m Mode) Pushes() bool { return m == DoubleWrite || m == APIOnly }

// ServerPrimary reports whether the server document always wins.
func (m Mode) ServerPrimary() bool { return m == APIOnly }

func (m Mode) String() string { return string(m) }

// DefaultFor returns the environment default for an API base URL: local
// development servers get DOUBLE_WRITE, anything else API_ONLY. Without an
// API base there is nothing to talk to.
func DefaultFor(apiBase string) Mode {
	apiBase = strings.TrimSpace(apiBase)
	if apiBase == "" {
		return LocalOnly
	}
	host := apiBase
	if u, err := url.Parse(apiBase); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	if host == "localhost" || host == "127.0.0.1" || strings.HasSuffix(host, ".local") {
		return DoubleWrite
	}
	return APIOnly
}

// Source names where a resolved mode came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceStored   Source = "stored"
	SourceDefault  Source = "default"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Mode   Mode
	Source Source

	// Upgraded is set when a deprecated mode was replaced by DOUBLE_WRITE.
	Upgraded bool

	// Persist is set when Mode should be stored as the new preference.
	Persist bool
}

// Resolve picks the mode: an explicit override wins over the stored
// preference, which wins over the environment default. Values that do not
// parse fall through to the next level.
func Resolve(override, stored string, envDefault Mode) Resolution {
	if m, ok := Parse(override); ok {
		return Resolution{Mode: m, Source: SourceOverride, Persist: true}
	}

	res := Resolution{Mode: envDefault, Source: SourceDefault}
	if m, ok := Parse(stored); ok {
		res = Resolution{Mode: m, Source: SourceStored}
	}
	if res.Mode == "" {
		res.Mode = LocalOnly
	}
	if res.Mode == APIReadFallback {
		res.Mode = DoubleWrite
		res.Upgraded = true
		res.Persist = true
	}
	return res
}

// Preferences persists the stored mode preference.
type Preferences interface {
	StoredMode(ctx context.Context) (string, error)
	SetStoredMode(ctx context.Context, m Mode) error
}

// ResolveStored resolves against the stored preference and writes back
// overrides and upgrades.
func ResolveStored(ctx context.Context, prefs Preferences, override string, envDefault Mode) (Resolution, error) {
	stored, err := prefs.StoredMode(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to read stored mode: %w", err)
	}
	res := Resolve(override, stored, envDefault)
	if res.Persist {
		if err := prefs.SetStoredMode(ctx, res.Mode); err != nil {
			return res, fmt.Errorf("failed to store mode: %w", err)
		}
	}
	return res, nil
}
