package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/stonks/internal/core"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources [name]",
	Short: "List the registered data sources",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := loadApp()
		defer log.Sync()
		if err != nil {
			return err
		}

		providers := a.Collectors().Providers()
		if len(args) == 1 {
			c, err := a.Collectors().Lookup(args[0])
			if err != nil {
				return err
			}
			providers = []core.Provider{c.Descriptor()}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "name\tkey\tdescription")
		for _, p := range providers {
			key := "-"
			if p.RequiresKey {
				key = "required"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, key, p.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
