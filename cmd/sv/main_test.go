package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/stories_viewer/pkg/export"
	"github.com/Dicklesworthstone/stories_viewer/pkg/history"
	"github.com/Dicklesworthstone/stories_viewer/pkg/logger"
	"github.com/Dicklesworthstone/stories_viewer/pkg/session"
	"github.com/Dicklesworthstone/stories_viewer/pkg/updater"
	"github.com/Dicklesworthstone/stories_viewer/pkg/version"
	"github.com/Dicklesworthstone/stories_viewer/pkg/workspace"
)

const feed = `{"stories":[
{"id":1,"image":"a.png","user":"alice"},
{"id":2,"image":"b.png","user":"bob"},
{"id":3,"image":"c.png","user":"alice"}
]}`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SV_HISTORY_ENABLED", "false")
	t.Setenv("SV_LOG_PATH", filepath.Join(dir, "sv.log"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stories.json"), []byte(feed), 0644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "sv "+version.Version+"\n", out)
}

func TestRobotStats(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "--robot-stats")
	require.NoError(t, err)

	var stats export.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 3, stats.Stories)
	assert.Equal(t, 2, stats.MaxPerUser)
}

func TestRobotCatalogKeepsFeedOrder(t *testing.T) {
	dir := setupEnv(t)

	out, err := execute(t, "--robot-catalog", "--feed", filepath.Join(dir, "stories.json"))
	require.NoError(t, err)

	var snap export.CatalogSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Users, 2)
	assert.Equal(t, "alice", snap.Users[0].Username)
	assert.Len(t, snap.Users[0].Stories, 2)
	assert.Equal(t, "bob", snap.Users[1].Username)
}

func TestRobotCatalogFallsBackWithoutFeed(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SV_HISTORY_ENABLED", "false")

	out, err := execute(t, "--robot-catalog")
	require.NoError(t, err)

	var snap export.CatalogSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.NotEmpty(t, snap.Users)
}

func TestExportMarkdown(t *testing.T) {
	dir := setupEnv(t)
	target := filepath.Join(dir, "report.md")

	out, err := execute(t, "--export-md", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "alice"))
	assert.True(t, strings.Contains(string(data), "bob"))
}

func TestDurationFlagMustBePositive(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "--robot-stats", "--duration", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--duration")
}

func TestMissingExplicitConfig(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "--robot-stats", "--config", "nope.yaml")
	require.Error(t, err)
}

func TestInteractiveModeNeedsTerminal(t *testing.T) {
	setupEnv(t)
	t.Setenv("SV_WATCH", "false")

	_, err := execute(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")
}

func TestCheckUpdateReportsNewRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v99.0.0","html_url":"https://example.com/release"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := checkUpdate(context.Background(), &out, &updater.Checker{Client: srv.Client(), URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "v99.0.0 is available")
	assert.Contains(t, out.String(), "https://example.com/release")
}

func TestExportSQLite(t *testing.T) {
	dir := setupEnv(t)
	target := filepath.Join(dir, "site")

	_, err := execute(t, "--export-sqlite", target)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(target, export.SQLiteFile))
	assert.FileExists(t, filepath.Join(target, "data", "stats.json"))
}

func TestLoadFeedsReportsTotalFailure(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "stories.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"stories":`), 0644))

	records, err := loadFeeds(context.Background(), []string{broken}, logger.Discard())
	require.ErrorIs(t, err, workspace.ErrAllSourcesFailed)
	assert.Nil(t, records)
}

func TestLoadFeedsResolvesImagesPerFeed(t *testing.T) {
	root := t.TempDir()
	var sources []string
	for i, name := range []string{"a", "b"} {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".png"), []byte("png"), 0644))
		content := fmt.Sprintf(`{"stories":[{"id":%d,"image":"%s.png","user":"%s"}]}`, i+1, name, name)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "stories.json"), []byte(content), 0644))
		sources = append(sources, dir)
	}
	t.Chdir(t.TempDir())

	records, err := loadFeeds(context.Background(), sources, logger.Discard())
	require.NoError(t, err)
	require.Len(t, records, 2)

	available := session.ContentProber(".")
	for _, r := range records {
		assert.NoError(t, available(r.Image), "story %d", r.ID)
	}
}

func TestLogLastSession(t *testing.T) {
	store, err := history.Open(history.MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.RecordView(ctx, history.View{SessionID: "s1", StoryID: 1, User: "alice"}))
	require.NoError(t, store.RecordView(ctx, history.View{SessionID: "s1", StoryID: 2, User: "alice"}))

	var buf bytes.Buffer
	log := logger.New(logger.Opts{Level: "info", Writers: []io.Writer{&buf}})
	logLastSession(ctx, log, store, "s1")
	assert.Contains(t, buf.String(), `"views":2`)

	buf.Reset()
	logLastSession(ctx, log, store, "")
	assert.Empty(t, buf.String())
}
