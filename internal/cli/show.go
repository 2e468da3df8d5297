package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/shelf/catalog"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <author|genre|book> <id>",
		Short: "Show an entity with its related records",
		Long: `Show an entity with its related records: an author's books, a genre's
books, or a book's author, genres and copies.`,
		Args:          usageArgs(cobra.ExactArgs(2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runShow(opts *RootOptions, arg, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	kind, err := parseKind(arg)
	if err != nil {
		return err
	}

	ctx, cancel, svc, err := opts.service(cmd)
	if err != nil {
		return formatter.Fail("show "+arg, err, nil)
	}
	defer cancel()

	var result any
	switch kind {
	case catalog.KindAuthor:
		var d catalog.AuthorDetail
		d, err = svc.AuthorDetail(ctx, id)
		result = authorDetail(d)
	case catalog.KindGenre:
		var d catalog.GenreDetail
		d, err = svc.GenreDetail(ctx, id)
		result = genreDetail(d)
	case catalog.KindBook:
		var d catalog.BookDetail
		d, err = svc.BookDetail(ctx, id)
		result = bookDetail(d)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("show does not support %s", kind))
	}
	if err != nil {
		return formatter.Fail("show "+arg, err, nil)
	}
	return formatter.Success(result)
}
