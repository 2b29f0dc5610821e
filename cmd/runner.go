package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spinsapp/spins/internal/formatter"
	"github.com/spinsapp/spins/internal/match"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
	"github.com/spinsapp/spins/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	source     services.ScrobbleSource
	logger     *log.Logger
	output     io.Writer
	format     formatter.Format
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	Source     services.ScrobbleSource
	Logger     *log.Logger
	Output     io.Writer
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

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		source:     opts.Source,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, ingestCommand, syncCommand, likeCommand, albumsCommand,
		dedupeCommand, rotationCommand, runCommand, reportCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// store bundles the open database with the repositories and resolver built on it.
// Commands obtain one via openStore and must Close it when done.
type store struct {
	db       *sql.DB
	history  *repositories.HistoryRepository
	tracks   *repositories.LibraryTrackRepository
	albums   *repositories.LibraryAlbumRepository
	searches *repositories.SearchCacheRepository
	unfound  *repositories.UnfoundRepository
	meta     *repositories.MetadataRepository
	resolver *match.Engine
}

func (s *store) Close() error {
	return s.db.Close()
}

// openStore opens the configured database, applies migrations, and wires the
// repositories plus the match engine used by resolution-driven commands.
func (r *Runner) openStore() (*store, error) {
	dbPath, err := r.config.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	db, err := shared.NewDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	st := &store{
		db:       db,
		history:  repositories.NewHistoryRepository(db),
		tracks:   repositories.NewLibraryTrackRepository(db),
		albums:   repositories.NewLibraryAlbumRepository(db),
		searches: repositories.NewSearchCacheRepository(db),
		unfound:  repositories.NewUnfoundRepository(db),
		meta:     repositories.NewMetadataRepository(db),
	}
	st.resolver = match.NewEngine(st.searches, r.catalog, st.unfound)

	return st, nil
}

// withProgress runs fn with a progress channel and drains updates into the
// logger until the channel closes. fn owns the run; withProgress owns the channel.
func (r *Runner) withProgress(fn func(progress chan<- tasks.ProgressUpdate) error) error {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	err := fn(progress)
	close(progress)
	<-done

	return err
}

func (r *Runner) requireCatalog() error {
	if r.catalog == nil {
		return fmt.Errorf("%w: Spotify credentials not configured (run 'spins auth spotify')", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) requireSource() error {
	if r.source == nil {
		return fmt.Errorf("%w: Last.fm credentials not configured (set credentials.lastfm in config.toml)", shared.ErrServiceUnavailable)
	}
	return nil
}

// setFormat adopts the command's summary format flag.
func (r *Runner) setFormat(cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	r.format = format
	return nil
}

// minPlays resolves the play-count threshold: flag, then config, then 5.
func (r *Runner) minPlays(cmd *cli.Command) int {
	if n := cmd.Int("min-plays"); n > 0 {
		return n
	}
	if r.config != nil && r.config.Rules.MinPlayCount > 0 {
		return r.config.Rules.MinPlayCount
	}
	return 5
}

// saveTokens writes the given token into the runner's config and persists it
// to the config file the runner was started with.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("config is nil")
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
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
