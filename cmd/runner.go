package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crosspost/internal/content"
	"github.com/desertthunder/crosspost/internal/drafts"
	"github.com/desertthunder/crosspost/internal/formatter"
	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/platforms"
	"github.com/desertthunder/crosspost/internal/repositories"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
	"github.com/desertthunder/crosspost/internal/tasks"
)

// Exit codes for publish batches that did not fully succeed.
const (
	exitTotalFailure = 1
	exitPartial      = 2
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	registry   *platforms.Registry
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	uploader   coverUploader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Registry   *platforms.Registry
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	Uploader   coverUploader // built from [storage] when nil
}

// NewRunner creates a new Runner, filling every missing dependency from the config.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = services.NewHTTPClient(opts.Config.API.Token, opts.Config.API.Timeout.Duration)
	}
	if opts.Registry == nil {
		opts.Registry = registryFromConfig(opts.Config, opts.Logger)
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(
			opts.Config.API.BaseURL,
			opts.HTTPClient,
			services.WithRateLimit(opts.Config.API.RateLimit),
			services.WithLogger(opts.Logger),
		)
	}

	return &Runner{
		config:     opts.Config,
		registry:   opts.Registry,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		uploader:   opts.Uploader,
	}
}

func registryFromConfig(config *shared.Config, logger *log.Logger) *platforms.Registry {
	if len(config.Platforms) == 0 {
		return platforms.Default()
	}
	registry, err := platforms.FromConfig(config.Platforms)
	if err != nil {
		logger.Warn("invalid platform table, using defaults", "error", err)
		return platforms.Default()
	}
	return registry
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, draftCommand, composeCommand, publishCommand, activityCommand,
		serveCommand, tuiCommand, coverCommand, platformsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger, e.g. to keep log lines out of a full-screen UI.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) draftStore(id string) *drafts.Store {
	return drafts.NewStore(id, services.NewDraftAPI(r.api),
		drafts.WithLogger(r.logger),
		drafts.WithTimeout(r.config.API.Timeout.Duration),
	)
}

func (r *Runner) publishEngine(jobs tasks.JobRecorder) *tasks.PublishEngine {
	return tasks.NewPublishEngine(services.NewPublishAPI(r.api), r.registry, tasks.PublishOptions{
		Logger:  r.logger,
		Jobs:    jobs,
		Timeout: r.config.API.Timeout.Duration,
		MaxTags: r.config.Editor.MaxTags,
	})
}

func (r *Runner) activityEngine() *tasks.ActivityEngine {
	return tasks.NewActivityEngine(services.NewActivityAPI(r.api), tasks.NewReconciler(r.registry), tasks.ActivityOptions{
		Logger: r.logger,
		Limit:  r.config.API.ActivityLimit,
	})
}

// jobLog opens the local publish job log. A missing or broken database only disables the log.
func (r *Runner) jobLog() (tasks.JobRecorder, func()) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		r.logger.Warn("publish job log unavailable", "path", r.config.Database.Path, "error", err)
		return nil, func() {}
	}
	return repositories.NewPublishJobRepository(db), func() { db.Close() }
}

// watchProgress logs updates until the returned stop func is called.
func (r *Runner) watchProgress() (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()
	return progress, func() {
		close(progress)
		<-done
	}
}

func (r *Runner) label(id models.PlatformID) string {
	return r.registry.Label(string(id))
}

// readBody loads a draft body from path, "-" meaning the runner's input. Markdown files are rendered to HTML.
func (r *Runner) readBody(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(r.input)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return content.MarkdownToHTML(data), nil
	default:
		return string(data), nil
	}
}

// overlaySnapshot applies the draft flags the user actually set on top of snap.
func (r *Runner) overlaySnapshot(cmd *cli.Command, snap models.DraftSnapshot) (models.DraftSnapshot, error) {
	if cmd.IsSet("title") {
		snap.Title = cmd.String("title")
	}
	if path := cmd.String("file"); path != "" {
		body, err := r.readBody(path)
		if err != nil {
			return snap, err
		}
		snap.Body = body
	}
	if cmd.IsSet("cover") {
		snap.CoverImageURL = cmd.String("cover")
	}
	if cmd.IsSet("tag") {
		snap.Tags = nil
		for _, tag := range cmd.StringSlice("tag") {
			next, err := snap.Tags.Add(tag, r.config.Editor.MaxTags)
			if err != nil {
				return snap, err
			}
			snap.Tags = next
		}
	}
	if cmd.IsSet("to") {
		targets := models.ParseTargets(cmd.StringSlice("to")...)
		if _, err := r.registry.Resolve(targets); err != nil {
			return snap, err
		}
		snap.Targets = targets
	}
	return snap, nil
}

// batchExit maps a publish batch to the process exit status.
func batchExit(result models.PublishBatchResult) error {
	switch tasks.Summary(result).Kind {
	case tasks.OutcomeTotalFailure:
		return cli.Exit("", exitTotalFailure)
	case tasks.OutcomePartial:
		return cli.Exit("", exitPartial)
	default:
		return nil
	}
}

func (r *Runner) writeBatch(result models.PublishBatchResult, asJSON bool) error {
	if asJSON {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
		return batchExit(result)
	}

	if err := r.writeBytes(formatter.BatchToText(result, r.label)); err != nil {
		return err
	}
	if err := r.writePlain("%s\n", tasks.Summary(result).Message); err != nil {
		return err
	}
	return batchExit(result)
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := r.config.API.Timeout.Duration; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	return r.writeBytes([]byte(fmt.Sprintf(format, args...)))
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
