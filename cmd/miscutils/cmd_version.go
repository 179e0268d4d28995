package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hengadev/miscutils"
)

func newVersionCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !long {
				fmt.Fprintln(cmd.OutOrStdout(), miscutils.VersionInfo())
				return nil
			}
			out, err := yaml.Marshal(miscutils.FullVersionInfo())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "print every build field as YAML")
	return cmd
}
