package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tapcanvas/threadgate/pkg/aliasstore"
	"tapcanvas/threadgate/pkg/cli"
)

var aliasesFlags struct {
	format string
}

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Inspect the alias table",
	Long: `Read the alias table configured under aliases.backend.

Examples:
  # List every alias
  threadgate aliases list

  # Machine readable
  threadgate aliases list --format json

  # One alias
  threadgate aliases show conv-42`,
}

var aliasesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every alias and its current internal thread id",
	Args:  cobra.NoArgs,
	RunE:  listAliases,
}

var aliasesShowCmd = &cobra.Command{
	Use:   "show <alias>",
	Short: "Show one alias record",
	Args:  cobra.ExactArgs(1),
	RunE:  showAlias,
}

func init() {
	rootCmd.AddCommand(aliasesCmd)
	aliasesCmd.AddCommand(aliasesListCmd, aliasesShowCmd)

	aliasesCmd.PersistentFlags().StringVarP(&aliasesFlags.format, "format", "f", "text", "output format: text, json")
}

// recordTable renders alias records in text mode.
type recordTable []*aliasstore.Record

func (t recordTable) Header() []string {
	return []string{"ALIAS", "INTERNAL ID", "REFRESHES", "UPDATED"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.Alias,
			r.InternalID,
			strconv.FormatInt(r.RefreshCount, 10),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func openAliasStore(ctx context.Context) (aliasstore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := aliasstore.Open(ctx, cfg.Aliases)
	if err != nil {
		return nil, cli.NewCommandError("aliases", err)
	}
	return store, nil
}

func listAliases(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(aliasesFlags.format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openAliasStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx)
	if err != nil {
		return cli.NewCommandError("aliases list", err)
	}

	var data any = recordTable(records)
	if format == cli.FormatJSON {
		if records == nil {
			records = []*aliasstore.Record{}
		}
		data = records
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

func showAlias(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(aliasesFlags.format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openAliasStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Lookup(ctx, args[0])
	if err != nil {
		return cli.NewCommandError("aliases show", err)
	}
	if rec == nil {
		return &cli.NotFoundError{Kind: "alias", Key: args[0]}
	}

	var data any = recordTable{rec}
	if format == cli.FormatJSON {
		data = rec
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}
