package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kvconsole/entry"
)

var listPage int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries, one page at a time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		p, err := api.List(cmd.Context(), listPage, entry.DefaultPageSize)
		if err != nil {
			return err
		}

		return printPage(cmd.OutOrStdout(), p, listPage)
	},
}

var searchPage int

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "List entries whose key matches keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		p, err := api.Search(cmd.Context(), args[0], searchPage, entry.DefaultPageSize)
		if err != nil {
			return err
		}

		return printPage(cmd.OutOrStdout(), p, searchPage)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored under key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		e, err := api.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), e.Value)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Create a new entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		if err := api.Create(cmd.Context(), entry.Entry{Key: args[0], Value: args[1]}); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", args[0])
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <key> <value>",
	Short: "Replace the value of an existing entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		if err := api.Update(cmd.Context(), entry.Entry{Key: args[0], Value: args[1]}); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		if err := api.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, searchCmd, getCmd, setCmd, updateCmd, deleteCmd)

	listCmd.Flags().IntVarP(&listPage, "page", "p", 1, "Page to show")
	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 1, "Page to show")
}

func printPage(out io.Writer, p entry.Page, page int) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, e := range p.Items {
		fmt.Fprintf(w, "%s\t%s\n", e.Key, e.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "page %d of %d (%d entries)\n", page, entry.PageCount(p.Total, entry.DefaultPageSize), p.Total)
	return err
}
