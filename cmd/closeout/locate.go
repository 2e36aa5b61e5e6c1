package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) locateCmd() *cobra.Command {
	var bin, dialect string
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Show which evaluator binary would be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _ := a.newEngine()
			m, err := engine.Locate(bin, dialect)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s\t(%s)\n", m.Path, m.Source)
			return nil
		},
	}
	cmd.Flags().StringVar(&bin, "bin", "", "explicit evaluator path to validate")
	cmd.Flags().StringVar(&dialect, "dialect", "", "dialect whose binary name is searched for")
	return cmd
}
