package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytq/internal/credentials"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/server"
	"github.com/desertthunder/ytq/internal/services"
	"github.com/desertthunder/ytq/internal/shared"
	"github.com/desertthunder/ytq/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	store      *credentials.Store
	uploaders  tasks.UploaderFactory
	browser    func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Uploaders  tasks.UploaderFactory // nil uploads to YouTube
	Browser    func(string) error    // nil uses [shared.OpenBrowser]
}

// NewRunner creates a new Runner with the provided configuration
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Browser == nil {
		opts.Browser = shared.OpenBrowser
	}

	store := credentials.NewStore(credentials.StoreOpts{
		Root:       opts.Config.Channels.Root,
		Logger:     opts.Logger,
		HTTPClient: opts.HTTPClient,
	})

	if opts.Uploaders == nil {
		opts.Uploaders = tasks.YouTubeUploaders(store, services.UploaderOpts{
			ChunkSize:  opts.Config.Upload.ChunkSize,
			CategoryID: opts.Config.Upload.CategoryID,
			Language:   opts.Config.Upload.Language,
			Endpoint:   opts.Config.Upload.Endpoint,
			Logger:     opts.Logger,
		})
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		store:      store,
		uploaders:  opts.Uploaders,
		browser:    opts.Browser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, channelCommand, uploadCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// coordinator builds the channel registry for one command invocation.
func (r *Runner) coordinator(updates chan<- tasks.Update, history tasks.HistoryRecorder) *tasks.Coordinator {
	return tasks.NewCoordinator(tasks.CoordinatorOpts{
		Store:         r.store,
		Uploaders:     r.uploaders,
		History:       history,
		Updates:       updates,
		JobsPerMinute: r.config.Upload.JobsPerMinute,
		Auth: server.Options{
			Host:        r.config.OAuth.Host,
			IdleTimeout: r.config.OAuth.IdleTimeout(),
			HTTPClient:  r.httpClient,
			Logger:      r.logger,
		},
		Logger: r.logger,
	})
}

func channelArg(cmd *cli.Command) (models.ChannelID, error) {
	raw := cmd.StringArg("channel")
	if raw == "" {
		return models.ChannelID{}, fmt.Errorf("%w: channel (category/name)", shared.ErrMissingArgument)
	}
	return models.ParseChannelID(raw)
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

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
