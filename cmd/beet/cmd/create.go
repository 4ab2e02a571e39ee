package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beetdb/beet/config"
	"github.com/beetdb/beet/index"
	"github.com/beetdb/beet/internal/cmp"
)

func newCreateCmd() *cobra.Command {
	var (
		leaf       uint32
		internal   uint32
		key        uint32
		data       uint32
		compare    string
		initSym    string
		destroySym string
		indexType  int
		subPath    string
		cache      int32
		standalone bool
	)

	c := &cobra.Command{
		Use:   "create <path>",
		Short: "create an index on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if compare == "" {
				compare = "bytes"
			}
			if _, err := cmp.Lookup(compare); err != nil {
				return fmt.Errorf("unknown comparator %q: %w", compare, err)
			}

			itype := config.IndexType(indexType)
			switch itype {
			case config.Null, config.Plain, config.Host:
			default:
				return fmt.Errorf("invalid -type %d (want 1=NULL, 2=PLAIN, 3=HOST)", indexType)
			}

			layout := leafInternalSizes(leaf, internal, key, data)
			cfg := config.Config{
				IndexType:     itype,
				LeafPageSize:  layout.LeafPageSize(),
				IntPageSize:   layout.InternalPageSize(),
				LeafNodeSize:  leaf,
				IntNodeSize:   internal,
				KeySize:       key,
				DataSize:      data,
				LeafCacheSize: cache,
				IntCacheSize:  cache,
				SubPath:       subPath,
				CompareName:   compare,
				RscInitName:   initSym,
				RscDestName:   destroySym,
			}

			log := newLogger()
			defer log.Sync()
			if err := index.Create(fs, path, cfg, standalone, log); err != nil {
				return err
			}
			idx, err := index.Open(fs, path, standalone, index.OpenOverrides{}, log)
			if err != nil {
				return err
			}
			return idx.Close()
		},
	}

	c.Flags().Uint32Var(&leaf, "leaf", 0, "leaf node slot capacity")
	c.Flags().Uint32Var(&internal, "internal", 0, "internal node slot capacity")
	c.Flags().Uint32Var(&key, "key", 0, "fixed key size in bytes")
	c.Flags().Uint32Var(&data, "data", 0, "fixed value size in bytes")
	c.Flags().StringVar(&compare, "compare", "bytes", "comparator symbol name")
	c.Flags().StringVar(&initSym, "init", "", "optional user-resource init symbol name")
	c.Flags().StringVar(&destroySym, "destroy", "", "optional user-resource destroy symbol name")
	c.Flags().IntVar(&indexType, "type", int(config.Plain), "index type: 1=NULL, 2=PLAIN, 3=HOST")
	c.Flags().StringVar(&subPath, "subpath", "", "sibling directory of the embedded index (HOST only)")
	c.Flags().Int32Var(&cache, "cache", config.CacheDefault, "pager cache size (0=unlimited, -1=default)")
	c.Flags().BoolVar(&standalone, "standalone", true, "whether this index owns its own root file")

	c.MarkFlagRequired("leaf")
	c.MarkFlagRequired("internal")
	c.MarkFlagRequired("key")

	return c
}
