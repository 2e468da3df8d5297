package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacentio/shelf/catalog/dynamo"
)

// NewTablesCommand creates the tables command group.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Manage the DynamoDB tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the catalog tables",
		Long: `Create the entity, reference and unique constraint tables under the
configured prefix and wait until they are active. Existing tables are left
alone.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(rootOpts, cmd, true)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete",
		Short:         "Delete the catalog tables",
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(rootOpts, cmd, false)
		},
	})

	return cmd
}

type tablesResult struct {
	Tables  []string `json:"tables"`
	Created []string `json:"created,omitempty"`
	Deleted bool     `json:"deleted,omitempty"`
}

func (r tablesResult) renderText(w io.Writer) error {
	if r.Deleted {
		_, err := fmt.Fprintf(w, "deleted %s\n", strings.Join(r.Tables, ", "))
		return err
	}
	for _, t := range r.Tables {
		state := "exists"
		if slices.Contains(r.Created, t) {
			state = "created"
		}
		fmt.Fprintf(w, "%s\t%s\n", t, state)
	}
	return nil
}

func runTables(opts *RootOptions, cmd *cobra.Command, create bool) error {
	formatter := opts.formatter(cmd)
	if opts.OpenAdmin == nil {
		return NewExitError(ExitCommandError, "table management is not available")
	}

	ctx := cmd.Context()
	admin, err := opts.OpenAdmin(ctx)
	if err != nil {
		return formatter.Fail("tables", err, nil)
	}

	var dc dynamo.Config
	if opts.Config != nil {
		dc = opts.Config.DynamoConfig()
	}
	result := tablesResult{Tables: dynamo.TableNames(dc)}

	if create {
		result.Created, err = dynamo.CreateTables(ctx, admin, dc)
	} else {
		err = dynamo.DeleteTables(ctx, admin, dc)
		result.Deleted = err == nil
	}
	if err != nil {
		return formatter.Fail("tables", err, nil)
	}
	return formatter.Success(result)
}
