package cmd

import (
	"fmt"
	"path"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/config"
	"github.com/beetdb/beet/index"
	"github.com/beetdb/beet/internal/iter"
)

func newCountCmd() *cobra.Command {
	var standalone bool
	c := &cobra.Command{
		Use:   "count {leaves|internals|nodes|keys} <path>",
		Short: "count leaves/internals/nodes from file sizes, or keys via a full scan",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			what, dir := args[0], args[1]

			switch what {
			case "leaves", "internals", "nodes":
				raw, err := afero.ReadFile(fs, path.Join(dir, "config"))
				if err != nil {
					return err
				}
				cfg, derr := config.Decode(raw)
				if derr != nil {
					return derr
				}
				leaves, lerr := fileSlotCount(fs, path.Join(dir, "leaf"), cfg.LeafPageSize)
				if lerr != nil {
					return lerr
				}
				internals, ierr := fileSlotCount(fs, path.Join(dir, "nonleaf"), cfg.IntPageSize)
				if ierr != nil {
					return ierr
				}
				switch what {
				case "leaves":
					fmt.Fprintln(c.OutOrStdout(), leaves)
				case "internals":
					fmt.Fprintln(c.OutOrStdout(), internals)
				case "nodes":
					fmt.Fprintln(c.OutOrStdout(), leaves+internals)
				}
				return nil

			case "keys":
				log := newLogger()
				defer log.Sync()
				idx, err := index.Open(fs, dir, standalone, index.OpenOverrides{}, log)
				if err != nil {
					return err
				}
				defer idx.Close()

				it := iter.New(idx.Tree(), idx.Tree().Root(), iter.Options{Dir: iter.Asc})
				n := 0
				for {
					_, merr := it.Move()
					if merr != nil {
						if merr.Kind == berrors.EOF {
							break
						}
						return merr
					}
					n++
				}
				fmt.Fprintln(c.OutOrStdout(), n)
				return nil

			default:
				return fmt.Errorf("unknown count target %q (want leaves|internals|nodes|keys)", what)
			}
		},
	}
	c.Flags().BoolVar(&standalone, "standalone", true, "whether this index owns its own root file")
	return c
}

func fileSlotCount(fs afero.Fs, p string, pageSize uint32) (int64, error) {
	info, err := fs.Stat(p)
	if err != nil {
		return 0, err
	}
	if pageSize == 0 {
		return 0, nil
	}
	return info.Size() / int64(pageSize), nil
}
