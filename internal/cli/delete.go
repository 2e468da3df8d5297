package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/shelf/catalog"
)

// NewCanDeleteCommand creates the can-delete command.
func NewCanDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "can-delete <author|genre> <id>",
		Short: "Report whether an author or genre has dependent books",
		Long: `Report whether an author or genre can be deleted, listing the books that
reference it. Exits 0 either way; the verdict is in the output.`,
		Args:          usageArgs(cobra.ExactArgs(2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanDelete(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runCanDelete(opts *RootOptions, arg, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	kind, err := parseKind(arg)
	if err != nil {
		return err
	}

	ctx, cancel, svc, err := opts.service(cmd)
	if err != nil {
		return formatter.Fail("can-delete "+arg, err, nil)
	}
	defer cancel()

	verdict, err := svc.Guard().CanDelete(ctx, kind, id)
	if err != nil {
		return formatter.Fail("can-delete "+arg, err, nil)
	}
	return formatter.Success(verdictResult{Kind: kind, ID: id, Allowed: verdict.Allowed, Dependents: verdict.Dependents})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <genre|author|book|instance> <id>",
		Short: "Delete an entity",
		Long: `Delete an entity. Authors and genres referenced by any book are not
deleted; the referencing books are listed instead. Deleting a book leaves its
copies in place.`,
		Args:          usageArgs(cobra.ExactArgs(2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runDelete(opts *RootOptions, arg, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	kind, err := parseKind(arg)
	if err != nil {
		return err
	}

	ctx, cancel, svc, err := opts.service(cmd)
	if err != nil {
		return formatter.Fail("delete "+arg, err, nil)
	}
	defer cancel()

	switch kind {
	case catalog.KindAuthor:
		err = svc.DeleteAuthor(ctx, id)
	case catalog.KindGenre:
		err = svc.DeleteGenre(ctx, id)
	case catalog.KindBook:
		err = svc.DeleteBook(ctx, id)
	case catalog.KindInstance:
		err = svc.DeleteInstance(ctx, id)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("delete does not support %s", kind))
	}

	var blocked *catalog.DeleteBlockedError
	if errors.As(err, &blocked) {
		return formatter.Fail("delete "+arg, err, verdictResult{Kind: kind, ID: id, Dependents: blocked.Dependents})
	}
	if err != nil {
		return formatter.Fail("delete "+arg, err, nil)
	}
	return formatter.Success(deleteResult{Kind: kind, ID: id, Deleted: true})
}
