package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"markestedt/pastemd/config"
	"markestedt/pastemd/content"
	"markestedt/pastemd/i18n"
	"markestedt/pastemd/pandoc"
	"markestedt/pastemd/platform"
	"markestedt/pastemd/storage"
	"markestedt/pastemd/workflow"
)

const (
	debounceWindow = 500 * time.Millisecond
	transientAge   = 24 * time.Hour
)

// Notifier shows rendered outcomes to the user.
type Notifier interface {
	Notify(title, message string, ok bool)
	SetEnabled(on bool)
}

// Recorder persists outcomes.
type Recorder interface {
	SavePaste(p *storage.Paste) error
}

// Feed receives live updates for the dashboard.
type Feed interface {
	BroadcastStatus(status string)
	BroadcastPaste(p *storage.Paste, message string)
}

// Agent turns hotkey presses into paste invocations
type Agent struct {
	store     *config.Store
	hotkey    platform.Hotkey
	clipboard platform.Clipboard
	detector  platform.Detector
	launcher  workflow.Launcher
	documents map[workflow.Target]workflow.DocumentInserter
	tables    map[workflow.Target]workflow.TableInserter

	notifier Notifier
	history  Recorder
	feed     Feed

	newConverter func(path string) (workflow.DocumentConverter, error)
	now          func() time.Time

	mu       sync.Mutex
	catalogs map[string]*i18n.Catalog
	wg       sync.WaitGroup
}

// NewAgent creates an agent on the platform facilities. history and feed may be nil.
func NewAgent(store *config.Store, notifier Notifier, history Recorder, feed Feed) *Agent {
	return &Agent{
		store:     store,
		hotkey:    platform.NewHotkey(),
		clipboard: platform.NewClipboard(),
		detector:  platform.NewDetector(),
		launcher:  platform.Launcher{},
		documents: map[workflow.Target]workflow.DocumentInserter{
			workflow.Word: platform.NewOfficeDocument(platform.AppWord),
			workflow.Wps:  platform.NewOfficeDocument(platform.AppWps),
		},
		tables: map[workflow.Target]workflow.TableInserter{
			workflow.Excel:    platform.NewOfficeSheet(platform.AppExcel),
			workflow.WpsExcel: platform.NewOfficeSheet(platform.AppWpsExcel),
		},
		notifier:     notifier,
		history:      history,
		feed:         feed,
		newConverter: newPandoc,
		now:          time.Now,
		catalogs:     make(map[string]*i18n.Catalog),
	}
}

func newPandoc(path string) (workflow.DocumentConverter, error) {
	return pandoc.New(path)
}

// Run starts the agent's main event loop
func (a *Agent) Run(ctx context.Context) error {
	cfg := a.store.Snapshot()

	combo, err := config.ParseHotkey(cfg.Hotkey.Combo)
	if err != nil {
		return fmt.Errorf("failed to parse hotkey: %w", err)
	}
	vkCode, err := platform.VKCode(combo.Key)
	if err != nil {
		return fmt.Errorf("failed to get VK code: %w", err)
	}

	events, err := a.hotkey.Listen(ctx, platform.KeyCombo{
		Ctrl:  combo.Ctrl,
		Shift: combo.Shift,
		Alt:   combo.Alt,
		Win:   combo.Win,
		Key:   vkCode,
	})
	if err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}

	a.startup(cfg)
	slog.Info("PasteMD started", "hotkey", cfg.Hotkey.Combo)

	d := debouncer{window: debounceWindow}
	for {
		select {
		case <-ctx.Done():
			a.wg.Wait()
			return nil

		case pressed := <-events:
			if !d.accept(pressed) {
				slog.Debug("Ignoring repeated hotkey press")
				continue
			}
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.Once(ctx)
			}()
		}
	}
}

// startup sweeps stale transient files and announces readiness.
func (a *Agent) startup(cfg config.Config) {
	a.notifier.SetEnabled(cfg.Notify.Enabled)
	catalog := a.catalog(cfg.Notify.Language)
	title := catalog.T("app.title", nil)

	if n, err := workflow.SweepTransient(cfg.ExpandedTempDir(), transientAge, a.now()); err != nil {
		slog.Warn("Failed to sweep transient files", "error", err)
	} else if n > 0 {
		slog.Info("Removed stale transient files", "count", n)
	}

	if _, err := a.newConverter(cfg.Pandoc.Path); err != nil {
		slog.Warn("Pandoc unavailable", "error", err)
		a.notifier.Notify(title, catalog.T("workflow.pandoc.init_failed", nil), false)
		return
	}
	a.notifier.Notify(title, catalog.T("app.startup.success", map[string]any{"hotkey": cfg.Hotkey.Combo}), true)
}

// Once runs a single paste invocation and reports its outcomes.
func (a *Agent) Once(ctx context.Context) []workflow.Outcome {
	id := uuid.NewString()
	log := slog.With("invocation", id)
	start := a.now()

	cfg := a.store.Snapshot()
	a.notifier.SetEnabled(cfg.Notify.Enabled)
	catalog := a.catalog(cfg.Notify.Language)
	policy := workflow.ParsePolicy(cfg.Output.NoAppAction)

	a.status("processing")
	defer a.status("idle")

	desc, target, err := a.capture(ctx, cfg)

	var outcomes []workflow.Outcome
	if err != nil {
		log.Error("Failed to read clipboard", "error", err)
		outcomes = []workflow.Outcome{workflow.ReadFailed(err)}
	} else {
		log.Info("Paste requested", "kind", desc.Kind, "target", target, "policy", policy)
		outcomes = a.router(cfg, catalog, log).Route(ctx, desc, target, policy)
	}

	elapsed := a.now().Sub(start)
	for _, o := range outcomes {
		message := render(catalog, o)
		log.Info("Paste outcome", "ok", o.Succeeded, "key", o.MessageKey, "warning", o.WarningKey, "elapsed", elapsed)
		a.notifier.Notify(catalog.T("app.title", nil), message, o.Succeeded)
		a.record(cfg, &storage.Paste{
			InvocationID: id,
			Timestamp:    start,
			ContentKind:  desc.Kind.String(),
			Target:       string(target),
			Policy:       string(policy),
			Succeeded:    o.Succeeded,
			MessageKey:   o.MessageKey,
			WarningKey:   o.WarningKey,
			Params:       o.Params,
			DurationMs:   elapsed.Milliseconds(),
		}, message)
	}
	return outcomes
}

// capture reads and classifies the clipboard while the foreground
// application is detected.
func (a *Agent) capture(ctx context.Context, cfg config.Config) (content.Descriptor, workflow.Target, error) {
	var (
		desc   content.Descriptor
		target = workflow.None
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := content.Capture(a.clipboard, cfg.Files.Patterns)
		if err != nil {
			return err
		}
		classifier := &content.Classifier{
			Cleaner: content.NewHTMLCleaner(content.HTMLOptions{StrikethroughToDel: cfg.HTML.StrikethroughToDel}),
			Rules:   content.PlainRules{MaxBlocks: cfg.HTML.PlainMaxBlocks},
		}
		desc = classifier.Classify(snap)
		return nil
	})
	g.Go(func() error {
		target = workflow.ParseTarget(a.detector.Detect())
		return nil
	})

	err := g.Wait()
	return desc, target, err
}

func (a *Agent) router(cfg config.Config, catalog *i18n.Catalog, log *slog.Logger) *workflow.Router {
	converter, err := a.newConverter(cfg.Pandoc.Path)
	if err != nil {
		log.Warn("Pandoc unavailable, document flows will fail", "error", err)
		converter = missingConverter{err: err}
	}

	return workflow.NewRouter(workflow.Deps{
		Converter: converter,
		Documents: a.documents,
		Tables:    a.tables,
		Launcher:  a.launcher,
		Clipboard: a.clipboard,
		OnProgress: func(o workflow.Outcome) {
			a.notifier.Notify(catalog.T("app.title", nil), render(catalog, o), o.Succeeded)
		},
		Now: a.now,
	}, workflow.SettingsFrom(cfg))
}

func (a *Agent) record(cfg config.Config, p *storage.Paste, message string) {
	if a.history != nil && cfg.History.Enabled {
		if err := a.history.SavePaste(p); err != nil {
			slog.Warn("Failed to record paste", "error", err)
		}
	}
	if a.feed != nil {
		a.feed.BroadcastPaste(p, message)
	}
}

func (a *Agent) status(s string) {
	if a.feed != nil {
		a.feed.BroadcastStatus(s)
	}
}

// catalog caches one message catalog per language.
func (a *Agent) catalog(lang string) *i18n.Catalog {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.catalogs[lang]; ok {
		return c
	}
	c, err := i18n.Load(lang)
	if err != nil {
		slog.Warn("Unknown notification language, using default", "language", lang, "error", err)
	}
	a.catalogs[lang] = c
	return c
}

// render formats an outcome's message, followed by its warning if any.
func render(catalog *i18n.Catalog, o workflow.Outcome) string {
	msg := catalog.T(o.MessageKey, o.Params)
	if o.WarningKey != "" {
		msg += "\n" + catalog.T(o.WarningKey, o.WarningParams)
	}
	return msg
}

// missingConverter stands in for pandoc when the binary cannot be found so
// that table and empty flows still run.
type missingConverter struct {
	err error
}

func (m missingConverter) MarkdownToDocx(context.Context, string, workflow.ConvertOptions) ([]byte, error) {
	return nil, &workflow.ConversionError{Err: m.err}
}

func (m missingConverter) HTMLToDocx(context.Context, string, workflow.ConvertOptions) ([]byte, error) {
	return nil, &workflow.ConversionError{Err: m.err}
}

// debouncer drops presses that follow an accepted one within window.
type debouncer struct {
	window time.Duration
	last   time.Time
}

func (d *debouncer) accept(t time.Time) bool {
	if !d.last.IsZero() && t.Sub(d.last) < d.window {
		return false
	}
	d.last = t
	return true
}
