package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/hengadev/miscutils"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var placeholdersOnly bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode a serialized file and dump the object graph",
		Example: `  miscutils inspect state.pkl
  miscutils inspect --codec json state.json
  miscutils inspect --placeholders state.pkl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.LogOutput = cmd.ErrOrStderr()

			s, err := miscutils.NewSerializerFromConfig(miscutils.NewFileStore(args[0]), cfg)
			if err != nil {
				return err
			}
			v, err := s.Deserialize(cmd.Context())
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if placeholdersOnly {
				for _, path := range miscutils.FindPlaceholders(v) {
					fmt.Fprintln(out, path)
				}
				return nil
			}
			dumper.Fdump(out, v)
			return nil
		},
	}

	cmd.Flags().BoolVar(&placeholdersOnly, "placeholders", false, "only list the paths of placeholders in the graph")
	return cmd
}
