package appctx

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/mode"
)

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "hmp"}
	cmd.Flags().String("db", "", "Database path")
	cmd.Flags().String("local", "", "Local store path")
	cmd.Flags().String("api", "", "API base")
	cmd.Flags().String("mode", "", "Mode override")
	return cmd
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("HMP_API_BASE", "")
	t.Setenv("HMP_MODE", "")
	return dir
}

func TestBootstrap_ConfigOnly(t *testing.T) {
	dir := isolate(t)
	t.Setenv("HMP_DB_PATH", filepath.Join(dir, "test.db"))

	app, err := Bootstrap(testCommand(), Options{})
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Config)
	assert.NotNil(t, app.Log)
	assert.Nil(t, app.DB)
	assert.Nil(t, app.Local)
}

func TestBootstrap_WithDB(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "test.db")
	database, err := db.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	database.Close()

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("db", dbPath))

	app, err := Bootstrap(cmd, ServerOptions())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, dbPath, app.Config.DBPath)
	require.NotNil(t, app.Store)
}

func TestBootstrap_PendingMigrations(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "fresh.db")

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("db", dbPath))

	_, err := Bootstrap(cmd, ServerOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires migration")
}

func TestBootstrap_ClientResolvesMode(t *testing.T) {
	dir := isolate(t)
	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("local", filepath.Join(dir, "local.db")))
	require.NoError(t, cmd.Flags().Set("api", "http://localhost:3001/"))

	app, err := Bootstrap(cmd, ClientOptions())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", app.Config.APIBase)
	assert.Equal(t, mode.DoubleWrite, app.Mode.Mode)
	assert.Equal(t, mode.SourceDefault, app.Mode.Source)
	app.Close()

	// The API base is remembered and an override is persisted.
	cmd = testCommand()
	require.NoError(t, cmd.Flags().Set("local", filepath.Join(dir, "local.db")))
	require.NoError(t, cmd.Flags().Set("mode", "api_only"))
	app, err = Bootstrap(cmd, ClientOptions())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", app.Config.APIBase)
	assert.Equal(t, mode.APIOnly, app.Mode.Mode)
	app.Close()

	cmd = testCommand()
	require.NoError(t, cmd.Flags().Set("local", filepath.Join(dir, "local.db")))
	app, err = Bootstrap(cmd, ClientOptions())
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, mode.APIOnly, app.Mode.Mode)
	assert.Equal(t, mode.SourceStored, app.Mode.Source)
}

func TestWithApp_ClosesResources(t *testing.T) {
	dir := isolate(t)
	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("local", filepath.Join(dir, "local.db")))

	var captured *App
	run := WithApp(ClientOptions(), func(app *App, cmd *cobra.Command, args []string) error {
		captured = app
		require.NotNil(t, app.Local)
		return nil
	})
	require.NoError(t, run(cmd, nil))
	assert.Nil(t, captured.Local)
}
