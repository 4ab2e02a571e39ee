// Package cmd wires the beet CLI's cobra command tree (spec §6): help,
// version, create, config, height, count — exit code 0 on success,
// non-zero and a stderr message on any failure.
package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the library's semantic version, printed by `beet version`.
const Version = "0.1.0"

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

var fs afero.Fs = afero.NewOsFs()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "beet",
		Short:         "beet is an embeddable on-disk B+tree index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newVersionCmd())
	root.AddCommand(newCreateCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newHeightCmd())
	root.AddCommand(newCountCmd())
	return root
}

// Execute runs the beet CLI.
func Execute() error {
	return newRootCmd().Execute()
}
