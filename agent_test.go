package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/pastemd/config"
	"markestedt/pastemd/platform"
	"markestedt/pastemd/storage"
	"markestedt/pastemd/workflow"
)

type stubClipboard struct {
	text    string
	html    []byte
	files   []string
	textErr error
	set     []string
}

func (c *stubClipboard) Text() (string, error)    { return c.text, c.textErr }
func (c *stubClipboard) HTML() ([]byte, error)    { return c.html, nil }
func (c *stubClipboard) Files() ([]string, error) { return c.files, nil }
func (c *stubClipboard) SetFiles(paths []string) error {
	c.set = paths
	return nil
}

type stubDetector string

func (d stubDetector) Detect() string { return string(d) }

type stubConverter struct{}

func (stubConverter) MarkdownToDocx(_ context.Context, md string, _ workflow.ConvertOptions) ([]byte, error) {
	return []byte("docx:" + md), nil
}

func (stubConverter) HTMLToDocx(_ context.Context, html string, _ workflow.ConvertOptions) ([]byte, error) {
	return []byte("docx:" + html), nil
}

type notice struct {
	message string
	ok      bool
}

type stubNotifier struct {
	mu      sync.Mutex
	got     []notice
	enabled bool
}

func (n *stubNotifier) Notify(_, message string, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, notice{message, ok})
}

func (n *stubNotifier) SetEnabled(on bool) { n.enabled = on }

type stubHistory struct {
	pastes []storage.Paste
}

func (h *stubHistory) SavePaste(p *storage.Paste) error {
	h.pastes = append(h.pastes, *p)
	return nil
}

type stubFeed struct {
	statuses []string
	pastes   []string
}

func (f *stubFeed) BroadcastStatus(s string) { f.statuses = append(f.statuses, s) }
func (f *stubFeed) BroadcastPaste(_ *storage.Paste, message string) {
	f.pastes = append(f.pastes, message)
}

type harness struct {
	agent    *Agent
	clip     *stubClipboard
	notifier *stubNotifier
	history  *stubHistory
	feed     *stubFeed
	cfg      *config.Config
}

func newHarness(t *testing.T, target string) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Output.SaveDir = filepath.Join(dir, "out")
	cfg.Output.TempDir = filepath.Join(dir, "tmp")
	cfg.Output.NoAppAction = config.ActionSave

	h := &harness{
		clip:     &stubClipboard{},
		notifier: &stubNotifier{},
		history:  &stubHistory{},
		feed:     &stubFeed{},
		cfg:      cfg,
	}
	h.agent = NewAgent(config.NewStore(filepath.Join(dir, "config.toml"), cfg), h.notifier, h.history, h.feed)
	h.agent.clipboard = h.clip
	h.agent.detector = stubDetector(target)
	h.agent.documents = nil
	h.agent.tables = nil
	h.agent.newConverter = func(string) (workflow.DocumentConverter, error) { return stubConverter{}, nil }
	h.agent.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return h
}

func TestOnceEmptyClipboard(t *testing.T) {
	h := newHarness(t, platform.AppWord)

	outcomes := h.agent.Once(context.Background())

	require.Len(t, outcomes, 1)
	assert.Equal(t, workflow.KeyClipboardEmpty, outcomes[0].MessageKey)
	assert.Equal(t, []notice{{"Clipboard is empty or has no Markdown content.", false}}, h.notifier.got)

	require.Len(t, h.history.pastes, 1)
	p := h.history.pastes[0]
	assert.Equal(t, "empty", p.ContentKind)
	assert.Equal(t, "word", p.Target)
	assert.Equal(t, "save", p.Policy)
	assert.NotEmpty(t, p.InvocationID)

	assert.Equal(t, []string{"processing", "idle"}, h.feed.statuses)
	assert.Len(t, h.feed.pastes, 1)
}

func TestOnceSavesMarkdownWithoutTarget(t *testing.T) {
	h := newHarness(t, platform.AppNone)
	h.clip.text = "# Weekly report\n\nAll good."

	outcomes := h.agent.Once(context.Background())

	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Succeeded, outcomes[0].MessageKey)
	assert.Equal(t, "workflow.action.saved", outcomes[0].MessageKey)

	path, _ := outcomes[0].Params["path"].(string)
	assert.Equal(t, filepath.Join(h.cfg.Output.SaveDir, "weekly-report_20260301_093000.docx"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Weekly report")

	assert.Equal(t, "Saved to "+path, h.notifier.got[0].message)
	assert.Equal(t, "plain_text", h.history.pastes[0].ContentKind)
}

func TestOnceReadFailure(t *testing.T) {
	h := newHarness(t, platform.AppWord)
	h.clip.textErr = errors.New("access denied")

	outcomes := h.agent.Once(context.Background())

	require.Len(t, outcomes, 1)
	assert.Equal(t, workflow.KeyClipboardReadFailed, outcomes[0].MessageKey)
	assert.False(t, outcomes[0].Succeeded)
	assert.Contains(t, h.notifier.got[0].message, "access denied")
}

func TestOnceBatchSharesInvocation(t *testing.T) {
	h := newHarness(t, platform.AppNone)
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("# "+name), 0o644))
	}
	h.clip.files = []string{filepath.Join(dir, "b.md"), filepath.Join(dir, "a.md")}

	outcomes := h.agent.Once(context.Background())

	require.Len(t, outcomes, 3)
	assert.Equal(t, workflow.KeyBatchSuccess, outcomes[2].MessageKey)
	require.Len(t, h.history.pastes, 3)
	id := h.history.pastes[0].InvocationID
	for _, p := range h.history.pastes {
		assert.Equal(t, id, p.InvocationID)
		assert.Equal(t, "file_set", p.ContentKind)
	}
}

func TestOnceWithoutPandoc(t *testing.T) {
	h := newHarness(t, platform.AppNone)
	h.agent.newConverter = func(string) (workflow.DocumentConverter, error) { return nil, errors.New("pandoc not found") }
	h.cfg.Excel.Enable = false
	h.clip.text = "plain words"

	outcomes := h.agent.Once(context.Background())

	require.Len(t, outcomes, 1)
	assert.Equal(t, "workflow.markdown.convert_failed", outcomes[0].MessageKey)
	assert.Contains(t, outcomes[0].Params["error"], "pandoc not found")
}

func TestOnceHonoursNotificationSwitchAndHistorySwitch(t *testing.T) {
	h := newHarness(t, platform.AppWord)
	h.cfg.Notify.Enabled = false
	h.cfg.History.Enabled = false

	h.agent.Once(context.Background())

	assert.False(t, h.notifier.enabled)
	assert.Empty(t, h.history.pastes)
}

func TestStartupNotifies(t *testing.T) {
	h := newHarness(t, platform.AppNone)
	h.agent.startup(h.agent.store.Snapshot())
	assert.Equal(t, []notice{{"PasteMD is running. Press ctrl+shift+b to paste.", true}}, h.notifier.got)

	h = newHarness(t, platform.AppNone)
	h.agent.newConverter = func(string) (workflow.DocumentConverter, error) { return nil, errors.New("missing") }
	h.agent.startup(h.agent.store.Snapshot())
	require.Len(t, h.notifier.got, 1)
	assert.False(t, h.notifier.got[0].ok)
}

func TestDebouncer(t *testing.T) {
	d := debouncer{window: 500 * time.Millisecond}
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, d.accept(t0))
	assert.False(t, d.accept(t0.Add(200*time.Millisecond)))
	assert.True(t, d.accept(t0.Add(600*time.Millisecond)))
	assert.False(t, d.accept(t0.Add(1000*time.Millisecond)))
	assert.True(t, d.accept(t0.Add(1100*time.Millisecond)))
}

func TestRenderAppendsWarning(t *testing.T) {
	h := newHarness(t, platform.AppNone)
	catalog := h.agent.catalog("en")

	msg := render(catalog, workflow.Outcome{
		Succeeded:     true,
		MessageKey:    "workflow.word.insert_success",
		Params:        workflow.Params{"app": "Word"},
		WarningKey:    workflow.KeySaveFailed,
		WarningParams: workflow.Params{"error": "disk full"},
	})
	assert.Equal(t, "Inserted into Word.\nCould not save the document: disk full", msg)
}
