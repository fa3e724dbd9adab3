package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/platforms"
	"github.com/desertthunder/crosspost/internal/server"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
	tu "github.com/desertthunder/crosspost/internal/testing"
)

type harness struct {
	runner *Runner
	output *bytes.Buffer
	config *shared.Config
	dir    string
}

// newHarness starts a local backend on an in-memory database and points a runner at it.
func newHarness(t *testing.T, input string, opts ...server.Option) *harness {
	t.Helper()

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	opts = append([]server.Option{server.WithLogger(shared.DiscardLogger())}, opts...)
	backend := server.NewBackend(db, platforms.Default(), opts...)
	t.Cleanup(backend.Close)

	ts := httptest.NewServer(backend.Router())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.API.BaseURL = ts.URL
	config.API.RateLimit = 0
	config.Database.Path = filepath.Join(dir, "crosspost.db")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.DiscardLogger(),
		Output: output,
		Input:  strings.NewReader(input),
	})
	return &harness{runner: runner, output: output, config: config, dir: dir}
}

func (h *harness) run(args ...string) error {
	h.output.Reset()
	app := newApp(h.runner)
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	return app.Run(context.Background(), append([]string{"crosspost"}, args...))
}

func (h *harness) writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func exitCode(err error) int {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestDraftCommands(t *testing.T) {
	t.Run("save then get round-trips flags", func(t *testing.T) {
		h := newHarness(t, "")
		body := h.writeFile(t, "post.md", "# Hello\n\nFirst post.")

		err := h.run("draft", "save", "--id", "d1", "--title", "Hello", "--file", body,
			"--tag", "go", "--tag", "cli", "--to", "medium,devto", "--cover", "https://img.example/c.png")
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if got := h.output.String(); got != "d1 saved\n" {
			t.Errorf("expected save confirmation, got %q", got)
		}

		if err := h.run("draft", "get", "--id", "d1", "--format", "json"); err != nil {
			t.Fatalf("get failed: %v", err)
		}
		var record services.DraftRecord
		if err := jsonDecode(h.output.Bytes(), &record); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		snap := record.Snapshot()
		if snap.Title != "Hello" || !strings.Contains(snap.Body, "<h1") {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if strings.Join(snap.Tags, ",") != "go,cli" {
			t.Errorf("expected tags go,cli, got %v", snap.Tags)
		}
		if strings.Join(snap.Targets.Strings(), ",") != "medium,devto" {
			t.Errorf("expected targets medium,devto, got %v", snap.Targets)
		}
		if snap.CoverImageURL != "https://img.example/c.png" {
			t.Errorf("unexpected cover %q", snap.CoverImageURL)
		}
	})

	t.Run("save keeps fields that are not set", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("draft", "save", "--id", "d2", "--title", "Keep", "--tag", "go"); err != nil {
			t.Fatalf("first save failed: %v", err)
		}
		if err := h.run("draft", "save", "--id", "d2", "--cover", "https://img.example/x.png"); err != nil {
			t.Fatalf("second save failed: %v", err)
		}

		snap, err := services.NewDraftAPI(h.runner.api).GetDraft(context.Background(), "d2")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if snap.Title != "Keep" || len(snap.Tags) != 1 {
			t.Errorf("expected stored fields to survive, got %+v", snap)
		}
	})

	t.Run("get renders markdown by default", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("draft", "save", "--id", "d3", "--title", "Front matter"); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := h.run("draft", "get", "--id", "d3"); err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !strings.HasPrefix(h.output.String(), "---\n") || !strings.Contains(h.output.String(), "Front matter") {
			t.Errorf("expected front matter, got %q", h.output.String())
		}
	})

	t.Run("get missing draft", func(t *testing.T) {
		h := newHarness(t, "")
		err := h.run("draft", "get", "--id", "missing")
		if !errors.Is(err, shared.ErrDraftNotFound) {
			t.Errorf("expected ErrDraftNotFound, got %v", err)
		}
	})

	t.Run("save rejects too many tags", func(t *testing.T) {
		h := newHarness(t, "")
		args := []string{"draft", "save", "--id", "d4"}
		for i := range h.config.Editor.MaxTags + 1 {
			args = append(args, "--tag", fmt.Sprintf("t%d", i))
		}
		if err := h.run(args...); !errors.Is(err, shared.ErrTooManyTags) {
			t.Errorf("expected ErrTooManyTags, got %v", err)
		}
	})

	t.Run("save rejects unknown targets", func(t *testing.T) {
		h := newHarness(t, "")
		err := h.run("draft", "save", "--id", "d5", "--to", "myspace")
		if !errors.Is(err, shared.ErrUnknownPlatform) {
			t.Errorf("expected ErrUnknownPlatform, got %v", err)
		}
	})

	t.Run("new prints an id and stores the title", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("draft", "new", "--title", "Fresh"); err != nil {
			t.Fatalf("new failed: %v", err)
		}
		id := strings.TrimSpace(h.output.String())
		if len(id) != 36 {
			t.Fatalf("expected a uuid, got %q", id)
		}

		snap, err := services.NewDraftAPI(h.runner.api).GetDraft(context.Background(), id)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if snap.Title != "Fresh" {
			t.Errorf("expected stored title, got %q", snap.Title)
		}
	})
}

func TestCompose(t *testing.T) {
	t.Run("stdin becomes the body and is saved on EOF", func(t *testing.T) {
		h := newHarness(t, "first line\nsecond line\n")
		if err := h.run("compose", "--id", "c1", "--title", "Streamed", "--to", "medium"); err != nil {
			t.Fatalf("compose failed: %v", err)
		}
		if got := h.output.String(); got != "c1 saved\n" {
			t.Errorf("expected save confirmation, got %q", got)
		}

		snap, err := services.NewDraftAPI(h.runner.api).GetDraft(context.Background(), "c1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if snap.Title != "Streamed" || snap.Body != "first line\nsecond line\n" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if len(snap.Targets) != 1 || snap.Targets[0] != "medium" {
			t.Errorf("expected medium target, got %v", snap.Targets)
		}
	})

	t.Run("markdown input is rendered", func(t *testing.T) {
		h := newHarness(t, "# Title\n\nbody\n")
		if err := h.run("compose", "--id", "c2", "--markdown"); err != nil {
			t.Fatalf("compose failed: %v", err)
		}
		snap, err := services.NewDraftAPI(h.runner.api).GetDraft(context.Background(), "c2")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !strings.Contains(snap.Body, "<h1") || !strings.Contains(snap.Body, "<p>body</p>") {
			t.Errorf("expected rendered body, got %q", snap.Body)
		}
	})

	t.Run("empty input keeps the stored body", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("draft", "save", "--id", "c3", "--title", "Kept", "--file", h.writeFile(t, "b.html", "<p>kept</p>")); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := h.run("compose", "--id", "c3"); err != nil {
			t.Fatalf("compose failed: %v", err)
		}
		snap, err := services.NewDraftAPI(h.runner.api).GetDraft(context.Background(), "c3")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if snap.Body != "<p>kept</p>" {
			t.Errorf("expected stored body, got %q", snap.Body)
		}
	})

	t.Run("publish after save", func(t *testing.T) {
		h := newHarness(t, "ready to ship\n")
		err := h.run("compose", "--id", "c4", "--title", "Ship it", "--to", "devto", "--publish")
		if err != nil {
			t.Fatalf("compose failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "✓ Dev.to") {
			t.Errorf("expected publish line, got %q", h.output.String())
		}
	})
}

func TestPublish(t *testing.T) {
	reject := func(ids ...models.PlatformID) server.Option {
		return server.WithPublishHook(rejectHook(models.NewTargetSet(ids...)))
	}

	t.Run("total success from flags", func(t *testing.T) {
		h := newHarness(t, "")
		body := h.writeFile(t, "post.html", "<p>hello</p>")

		err := h.run("publish", "--title", "Launch", "--file", body, "--to", "medium", "--to", "devto")
		if code := exitCode(err); code != 0 {
			t.Fatalf("expected exit 0, got %d (%v)", code, err)
		}
		out := h.output.String()
		for _, want := range []string{"✓ Medium", "✓ Dev.to", "Published to"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got %q", want, out)
			}
		}
	})

	t.Run("partial failure exits 2", func(t *testing.T) {
		h := newHarness(t, "", reject("medium"))
		body := h.writeFile(t, "post.html", "<p>hello</p>")

		err := h.run("publish", "--title", "Launch", "--file", body, "--to", "medium,devto")
		if code := exitCode(err); code != exitPartial {
			t.Fatalf("expected exit %d, got %d (%v)", exitPartial, code, err)
		}
		out := h.output.String()
		if !strings.Contains(out, "✗ Medium: Medium rejected the post") {
			t.Errorf("expected failure reason, got %q", out)
		}
		if !strings.Contains(out, "✓ Dev.to") {
			t.Errorf("expected devto success, got %q", out)
		}
	})

	t.Run("total failure exits 1", func(t *testing.T) {
		h := newHarness(t, "", reject("medium", "devto"))
		body := h.writeFile(t, "post.html", "<p>hello</p>")

		err := h.run("publish", "--title", "Launch", "--file", body, "--to", "medium,devto", "--json")
		if code := exitCode(err); code != exitTotalFailure {
			t.Fatalf("expected exit %d, got %d (%v)", exitTotalFailure, code, err)
		}
		var result models.PublishBatchResult
		if err := jsonDecode(h.output.Bytes(), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(result.Failed) != 2 || len(result.Succeeded) != 0 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("stored draft uses its targets", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("draft", "save", "--id", "p1", "--title", "Stored", "--to", "linkedin"); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := h.run("publish", "--id", "p1"); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "✓ LinkedIn") {
			t.Errorf("expected linkedin success, got %q", h.output.String())
		}
	})

	t.Run("validation errors are returned before any request", func(t *testing.T) {
		h := newHarness(t, "")
		body := h.writeFile(t, "post.html", "<p>hello</p>")

		tests := []struct {
			name string
			args []string
			want error
		}{
			{"missing source", []string{"publish", "--to", "medium"}, shared.ErrMissingArgument},
			{"no targets", []string{"publish", "--title", "T", "--file", body}, shared.ErrNoTargets},
			{"empty title", []string{"publish", "--title", " ", "--file", body, "--to", "medium"}, shared.ErrEmptyTitle},
			{"unknown target", []string{"publish", "--title", "T", "--file", body, "--to", "myspace"}, shared.ErrUnknownPlatform},
			{"missing draft", []string{"publish", "--id", "nope"}, shared.ErrDraftNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := h.run(tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("history lists recorded batches", func(t *testing.T) {
		h := newHarness(t, "", reject("devto"))
		body := h.writeFile(t, "post.html", "<p>hello</p>")

		_ = h.run("publish", "--title", "Logged", "--file", body, "--to", "medium,devto")
		if err := h.run("publish", "history"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(h.output.String(), `"Logged"  1 ok / 1 failed`) {
			t.Errorf("expected recorded job, got %q", h.output.String())
		}
	})
}

func TestActivityCommands(t *testing.T) {
	seed := func(t *testing.T, h *harness) {
		t.Helper()
		for _, id := range []string{"a1", "a2", "a3"} {
			if err := h.run("draft", "save", "--id", id, "--title", "Post "+id, "--to", "medium"); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
		}
	}

	t.Run("list prints the reconciled timeline", func(t *testing.T) {
		h := newHarness(t, "")
		seed(t, h)

		if err := h.run("activity", "list", "--format", "json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		var entries []map[string]any
		if err := jsonDecode(h.output.Bytes(), &entries); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(entries) != 3 {
			t.Errorf("expected 3 entries, got %d", len(entries))
		}
	})

	t.Run("list pages", func(t *testing.T) {
		h := newHarness(t, "")
		seed(t, h)

		if err := h.run("activity", "list", "--format", "csv", "--size", "2", "--page", "2"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(h.output.String()), "\n")
		if len(lines) != 2 {
			t.Errorf("expected header plus one row, got %q", h.output.String())
		}
	})

	t.Run("list exports to a file", func(t *testing.T) {
		h := newHarness(t, "")
		seed(t, h)
		path := filepath.Join(h.dir, "timeline.md")

		if err := h.run("activity", "list", "--format", "markdown", "--output", path); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(tu.MustReadFile(t, path), "# Activity") {
			t.Error("expected markdown export")
		}
		if !strings.Contains(h.output.String(), "Exported 3 entries") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("list rejects unknown formats", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("activity", "list", "--format", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("sync", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("activity", "sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "Sync started") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("sync rejects unknown scopes", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("activity", "sync", "--scope", "myspace"); !errors.Is(err, shared.ErrUnknownPlatform) {
			t.Errorf("expected ErrUnknownPlatform, got %v", err)
		}
	})

	t.Run("watch rejects a bad schedule", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("activity", "watch", "--schedule", "not a cron"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

type fakeUploader struct {
	files, urls []string
}

func (f *fakeUploader) UploadFile(_ context.Context, path string) (string, error) {
	f.files = append(f.files, path)
	return "https://cdn.example/covers/" + filepath.Base(path), nil
}

func (f *fakeUploader) UploadURL(_ context.Context, src string) (string, error) {
	f.urls = append(f.urls, src)
	return "https://cdn.example/covers/remote.png", nil
}

func TestCoverUpload(t *testing.T) {
	t.Run("uploads a file and sets the draft cover", func(t *testing.T) {
		h := newHarness(t, "")
		uploader := &fakeUploader{}
		h.runner.uploader = uploader
		path := h.writeFile(t, "cover.png", "png")

		if err := h.run("cover", "upload", "--id", "cv1", path); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		if got := strings.TrimSpace(h.output.String()); got != "https://cdn.example/covers/cover.png" {
			t.Errorf("unexpected url %q", got)
		}

		snap, err := services.NewDraftAPI(h.runner.api).GetDraft(context.Background(), "cv1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if snap.CoverImageURL != "https://cdn.example/covers/cover.png" {
			t.Errorf("expected cover to be set, got %q", snap.CoverImageURL)
		}
	})

	t.Run("uploads from a URL", func(t *testing.T) {
		h := newHarness(t, "")
		uploader := &fakeUploader{}
		h.runner.uploader = uploader

		if err := h.run("cover", "upload", "--url", "https://img.example/a.png"); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		if len(uploader.urls) != 1 || len(uploader.files) != 0 {
			t.Errorf("expected one URL upload, got %+v", uploader)
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		h := newHarness(t, "")
		h.runner.uploader = &fakeUploader{}

		if err := h.run("cover", "upload"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := h.run("cover", "upload", "--url", "https://img.example/a.png", "a.png"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("unconfigured storage", func(t *testing.T) {
		h := newHarness(t, "")
		h.config.Storage = shared.StorageConfig{}
		path := h.writeFile(t, "cover.png", "png")

		if err := h.run("cover", "upload", path); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}

func TestSetupAndPlatforms(t *testing.T) {
	t.Run("setup config writes once", func(t *testing.T) {
		h := newHarness(t, "")
		path := filepath.Join(h.dir, "config.toml")

		if err := h.run("setup", "config", "--config", path); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if err := h.run("setup", "config", "--config", path); err == nil {
			t.Error("expected error when the config already exists")
		}
	})

	t.Run("setup database migrates the configured path", func(t *testing.T) {
		h := newHarness(t, "")
		dbPath := filepath.Join(h.dir, "setup.db")
		path := h.writeFile(t, "config.toml", fmt.Sprintf("[database]\npath = %q\n", dbPath))

		if err := h.run("setup", "database", "--config", path); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, dbPath)
	})

	t.Run("platforms lists the registry", func(t *testing.T) {
		h := newHarness(t, "")
		if err := h.run("platforms"); err != nil {
			t.Fatalf("platforms failed: %v", err)
		}
		for _, want := range []string{"Postificus", "Medium", "Dev.to", "LinkedIn"} {
			if !strings.Contains(h.output.String(), want) {
				t.Errorf("expected %q in output", want)
			}
		}

		if err := h.run("platforms", "--json"); err != nil {
			t.Fatalf("platforms --json failed: %v", err)
		}
		var rows []platformRow
		if err := jsonDecode(h.output.Bytes(), &rows); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(rows) != 4 || !rows[0].Self || rows[0].Publishable {
			t.Errorf("unexpected rows %+v", rows)
		}
	})
}

func TestServeHelpers(t *testing.T) {
	t.Run("rejectHook", func(t *testing.T) {
		hook := rejectHook(models.NewTargetSet("medium"))
		registry := platforms.Default()

		medium, _ := registry.Lookup("medium")
		if err := hook(context.Background(), medium, services.PublishPayload{}); err == nil {
			t.Error("expected medium to be rejected")
		}
		devto, _ := registry.Lookup("devto")
		if err := hook(context.Background(), devto, services.PublishPayload{}); err != nil {
			t.Errorf("expected devto to pass, got %v", err)
		}
	})

	t.Run("listenAddr", func(t *testing.T) {
		h := newHarness(t, "")
		addr := func(args ...string) string {
			t.Helper()
			var got string
			cmd := &cli.Command{
				Name:  "serve",
				Flags: serveCommand(h.runner).Flags,
				Action: func(_ context.Context, cmd *cli.Command) error {
					got = h.runner.listenAddr(cmd)
					return nil
				},
			}
			if err := cmd.Run(context.Background(), append([]string{"serve"}, args...)); err != nil {
				t.Fatal(err)
			}
			return got
		}

		if got := addr(); got != "127.0.0.1:8080" {
			t.Errorf("expected configured address, got %q", got)
		}
		if got := addr("--port", "9090", "--host", "0.0.0.0"); got != "0.0.0.0:9090" {
			t.Errorf("expected flag address, got %q", got)
		}
	})
}

func jsonDecode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
