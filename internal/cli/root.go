package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jacentio/shelf/catalog"
	"github.com/jacentio/shelf/catalog/dynamo"
	"github.com/jacentio/shelf/internal/config"
)

// StoreOpener opens the catalog store a command runs against.
type StoreOpener func(ctx context.Context) (catalog.Store, error)

// AdminOpener opens a DynamoDB client for table management.
type AdminOpener func(ctx context.Context) (dynamo.TableAdmin, error)

// RootOptions holds global flags and the dependencies shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Config    *config.Config
	Open      StoreOpener
	OpenAdmin AdminOpener
	Logger    *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the shelf CLI. opts carries the
// dependencies; the global flags are bound to it.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cmd := &cobra.Command{
		Use:   "shelf",
		Short: "shelf - a library catalog",
		Long:  "Manage a library catalog of genres, authors, books and book instances.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return NewExitError(ExitCommandError, err.Error())
	})

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewGenreCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCanDeleteCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewTablesCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// service opens the store and wraps it in a catalog service. The returned
// context carries the configured operation timeout.
func (o *RootOptions) service(cmd *cobra.Command) (context.Context, context.CancelFunc, *catalog.Service, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cancel := context.CancelFunc(func() {})
	if o.Config != nil && o.Config.Store.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.Config.Store.Timeout)
	}

	store, err := o.Open(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	return ctx, cancel, catalog.NewService(store, o.Logger), nil
}

// usageArgs reports positional argument errors as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return NewExitError(ExitCommandError, err.Error())
		}
		return nil
	}
}

// parseKind maps a command argument to a catalog kind.
func parseKind(s string) (catalog.Kind, error) {
	switch s {
	case "genre", "genres":
		return catalog.KindGenre, nil
	case "author", "authors":
		return catalog.KindAuthor, nil
	case "book", "books":
		return catalog.KindBook, nil
	case "bookinstance", "bookinstances", "instance", "instances":
		return catalog.KindInstance, nil
	}
	return "", NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q: must be one of genre, author, book, instance", s))
}
