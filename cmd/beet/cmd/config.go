package cmd

import (
	"fmt"
	"path"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/beetdb/beet/config"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config <path>",
		Short: "print an index's decoded config record",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			raw, err := afero.ReadFile(fs, path.Join(args[0], "config"))
			if err != nil {
				return err
			}
			cfg, derr := config.Decode(raw)
			if derr != nil {
				return derr
			}
			out := c.OutOrStdout()
			fmt.Fprintf(out, "indexType:     %s\n", cfg.IndexType)
			fmt.Fprintf(out, "leafPageSize:  %d\n", cfg.LeafPageSize)
			fmt.Fprintf(out, "intPageSize:   %d\n", cfg.IntPageSize)
			fmt.Fprintf(out, "leafNodeSize:  %d\n", cfg.LeafNodeSize)
			fmt.Fprintf(out, "intNodeSize:   %d\n", cfg.IntNodeSize)
			fmt.Fprintf(out, "keySize:       %d\n", cfg.KeySize)
			fmt.Fprintf(out, "dataSize:      %d\n", cfg.DataSize)
			fmt.Fprintf(out, "leafCacheSize: %d\n", cfg.LeafCacheSize)
			fmt.Fprintf(out, "intCacheSize:  %d\n", cfg.IntCacheSize)
			fmt.Fprintf(out, "subPath:       %s\n", cfg.SubPath)
			fmt.Fprintf(out, "compareName:   %s\n", cfg.CompareName)
			fmt.Fprintf(out, "rscInitName:   %s\n", cfg.RscInitName)
			fmt.Fprintf(out, "rscDestName:   %s\n", cfg.RscDestName)
			return nil
		},
	}
}
