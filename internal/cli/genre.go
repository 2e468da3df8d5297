package cli

import (
	"github.com/spf13/cobra"
)

// NewGenreCommand creates the genre command group.
func NewGenreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genre",
		Short: "Create and look up genres",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a genre unless one with the same name exists",
		Long: `Create a genre. Names are compared ignoring case, so creating "fantasy"
when "Fantasy" exists returns the existing genre.`,
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenreCreate(rootOpts, args[0], cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "find <name>",
		Short:         "Find a genre by name, ignoring case",
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenreFind(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

func runGenreCreate(opts *RootOptions, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx, cancel, svc, err := opts.service(cmd)
	if err != nil {
		return formatter.Fail("create genre", err, nil)
	}
	defer cancel()

	genre, created, err := svc.CreateGenre(ctx, name)
	if err != nil {
		return formatter.Fail("create genre", err, nil)
	}
	return formatter.Success(genreResult{Genre: genre, Created: created})
}

func runGenreFind(opts *RootOptions, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx, cancel, svc, err := opts.service(cmd)
	if err != nil {
		return formatter.Fail("find genre", err, nil)
	}
	defer cancel()

	genre, err := svc.Resolver().FindByNameCaseInsensitive(ctx, name)
	if err != nil {
		return formatter.Fail("find genre", err, nil)
	}
	return formatter.Success(genreResult{Genre: genre})
}
