package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beetdb/beet/index"
)

func newHeightCmd() *cobra.Command {
	var standalone bool
	c := &cobra.Command{
		Use:   "height <path>",
		Short: "print a tree's height",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()
			idx, err := index.Open(fs, args[0], standalone, index.OpenOverrides{}, log)
			if err != nil {
				return err
			}
			defer idx.Close()

			h, herr := idx.Height()
			if herr != nil {
				return herr
			}
			fmt.Fprintln(c.OutOrStdout(), h)
			return nil
		},
	}
	c.Flags().BoolVar(&standalone, "standalone", true, "whether this index owns its own root file")
	return c
}
