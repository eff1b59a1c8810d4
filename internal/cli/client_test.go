package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/localstore"
	"github.com/lherron/hmp/internal/logging"
	"github.com/lherron/hmp/internal/testutil"
)

// resetFlags puts every flag of the command tree back to its default so
// that runs do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCommand(t *testing.T, root *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	defer resetFlags(root)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func isolateCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("HMP_API_BASE", "")
	t.Setenv("HMP_MODE", "")
	t.Setenv("HMP_LOG_LEVEL", "error")
	t.Setenv("HMP_OUTPUT", "")
	t.Setenv("HMP_PUSH_DEBOUNCE_MS", "")
	t.Setenv("HMP_JWT_ACCESS_SECRET", "")
	return dir
}

func exitCodeOf(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func TestClientCommands_EndToEnd(t *testing.T) {
	dir := isolateCLI(t)
	f := newDaemonFixture(t)
	local := filepath.Join(dir, "local.db")
	docPath := testutil.WriteFile(t, dir, "hotel.json", daemonDoc)
	hmp := func(stdin string, args ...string) (string, error) {
		return runCommand(t, rootCmd, stdin, append([]string{"--local", local, "--api", f.srv.URL}, args...)...)
	}

	out, err := hmp(f.token(t, f.tenant.User)+"\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Access token stored.")

	out, err = hmp("", "load", docPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Local document replaced.")

	hotels, err := f.store.Hotels.ListHotels(context.Background(), f.tenant.Org.ID, "")
	require.NoError(t, err)
	require.Len(t, hotels, 1)
	assert.Equal(t, "Seaside", hotels[0].Name)

	out, err = hmp("", "load", docPath)
	require.NoError(t, err)
	assert.Contains(t, out, "already matches")

	out, err = hmp("", "-o", "json", "status")
	require.NoError(t, err)
	var st clientStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st), out)
	assert.Equal(t, "DOUBLE_WRITE", st.Mode)
	assert.Equal(t, "default", st.ModeSource)
	assert.True(t, st.LoggedIn)
	assert.False(t, st.Unsynced)
	assert.Equal(t, 1, st.Counts[legacy.CollectionHotels])

	out, err = hmp("", "mode", "api_only")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode set to API_ONLY.")

	out, err = hmp("", "mode")
	require.NoError(t, err)
	assert.Equal(t, "API_ONLY (stored)\n", out)

	out, err = hmp("", "pull")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Pulled server document.")

	out, err = hmp("", "logout")
	require.NoError(t, err)
	_, err = hmp("", "push")
	require.Error(t, err)
	assert.Equal(t, 1, exitCodeOf(err))
}

func TestModeCommand_Errors(t *testing.T) {
	dir := isolateCLI(t)
	local := filepath.Join(dir, "local.db")

	_, err := runCommand(t, rootCmd, "", "--local", local, "mode", "sideways")
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeOf(err))

	_, err = runCommand(t, rootCmd, "", "--local", local, "mode", "API_READ_FALLBACK")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deprecated")
}

func TestPushWithoutServer(t *testing.T) {
	dir := isolateCLI(t)
	local := filepath.Join(dir, "local.db")

	_, err := runCommand(t, rootCmd, "", "--local", local, "push")
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeOf(err))
	assert.Contains(t, err.Error(), "no server configured")
}

func TestLocalOnlyModeSkipsSync(t *testing.T) {
	dir := isolateCLI(t)
	local := filepath.Join(dir, "local.db")

	out, err := runCommand(t, rootCmd, "", "--local", local, "--api", "http://127.0.0.1:1", "--mode", "LOCAL_ONLY", "push")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode LOCAL_ONLY does not push.")

	out, err = runCommand(t, rootCmd, "", "--local", local, "pull")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode LOCAL_ONLY does not pull.")
}

func TestShowAndLoadYAML(t *testing.T) {
	dir := isolateCLI(t)
	local := filepath.Join(dir, "local.db")
	docPath := testutil.WriteFile(t, dir, "hotel.json", daemonDoc)

	_, err := runCommand(t, rootCmd, "", "--local", local, "load", docPath)
	require.NoError(t, err)

	yamlOut, err := runCommand(t, rootCmd, "", "--local", local, "-o", "yaml", "show")
	require.NoError(t, err)
	assert.Contains(t, yamlOut, "name: Seaside")

	jsonOut, err := runCommand(t, rootCmd, "", "--local", local, "show")
	require.NoError(t, err)
	doc, err := legacy.Decode([]byte(jsonOut))
	require.NoError(t, err)
	assert.Equal(t, "Seaside", doc.Hotels["h1"].Name)

	// The YAML rendition loads back to the same content.
	yamlPath := testutil.WriteFile(t, dir, "hotel.yaml", yamlOut)
	out, err := runCommand(t, rootCmd, "", "--local", local, "load", yamlPath)
	require.NoError(t, err)
	assert.Contains(t, out, "already matches")
}

func TestLoad_Errors(t *testing.T) {
	dir := isolateCLI(t)
	local := filepath.Join(dir, "local.db")

	_, err := runCommand(t, rootCmd, "", "--local", local, "load", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Equal(t, 1, exitCodeOf(err))

	bad := testutil.WriteFile(t, dir, "bad.json", "[1, 2]")
	_, err = runCommand(t, rootCmd, "", "--local", local, "load", bad)
	require.Error(t, err)
}

func TestDocumentDiff(t *testing.T) {
	a, err := legacy.Decode([]byte(daemonDoc))
	require.NoError(t, err)
	b, err := legacy.Clone(a)
	require.NoError(t, err)

	text, err := documentDiff(a, b, 3)
	require.NoError(t, err)
	assert.Empty(t, text)

	hotel := b.Hotels["h1"]
	hotel.Name = "Harbour"
	b.Hotels["h1"] = hotel
	text, err = documentDiff(a, b, 1)
	require.NoError(t, err)
	assert.Contains(t, text, "--- server")
	assert.Contains(t, text, "+++ local")
	assert.Contains(t, text, `-      "name": "Seaside"`)
	assert.Contains(t, text, `+      "name": "Harbour"`)
}

func TestWatchFile_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	local, err := localstore.Open(filepath.Join(dir, "local.db"))
	require.NoError(t, err)
	defer local.Close()

	path := testutil.WriteFile(t, dir, "hotel.json", daemonDoc)
	var notified atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, local, func() { notified.Add(1) }, logging.Discard())
	}()

	hotelName := func() string {
		doc, err := local.Load(context.Background())
		if err != nil {
			return ""
		}
		return doc.Hotels["h1"].Name
	}
	require.Eventually(t, func() bool { return hotelName() == "Seaside" }, 2*time.Second, 10*time.Millisecond)

	updated := strings.Replace(daemonDoc, "Seaside", "Harbour", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.Eventually(t, func() bool { return hotelName() == "Harbour" }, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, notified.Load(), int32(2))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watchFile did not return after cancel")
	}
}
