package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var errKeyNotFound = errors.New("key not found")

func newCacheCmd(opts *globalOptions) *cobra.Command {
	var file string

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Read and edit a persisted cache file",
	}
	cacheCmd.PersistentFlags().StringVarP(&file, "file", "f", "cache.pkl", "cache file")

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List the keys of the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openCache(cmd.Context(), cmd, file)
			if err != nil {
				return err
			}
			for _, k := range c.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openCache(cmd.Context(), cmd, file)
			if err != nil {
				return err
			}
			v, ok := c.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", errKeyNotFound, args[0])
			}
			printValue(cmd.OutOrStdout(), v)
			return nil
		},
	}

	putCmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a string value under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openCache(cmd.Context(), cmd, file)
			if err != nil {
				return err
			}
			return c.Put(cmd.Context(), args[0], args[1])
		},
	}

	popCmd := &cobra.Command{
		Use:   "pop <key>",
		Short: "Remove key and print its value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openCache(cmd.Context(), cmd, file)
			if err != nil {
				return err
			}
			v, ok, err := c.Pop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", errKeyNotFound, args[0])
			}
			printValue(cmd.OutOrStdout(), v)
			return nil
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print the size and expiry of the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openCache(cmd.Context(), cmd, file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entries: %d\n", c.Len())
			if exp := c.Expiry(); exp.IsZero() {
				fmt.Fprintln(out, "expiry: never")
			} else {
				fmt.Fprintf(out, "expiry: %s\n", exp.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}

	cacheCmd.AddCommand(keysCmd, getCmd, putCmd, popCmd, infoCmd)
	return cacheCmd
}

// printValue prints strings as-is and dumps everything else.
func printValue(w io.Writer, v any) {
	if s, ok := v.(string); ok {
		fmt.Fprintln(w, s)
		return
	}
	dumper.Fdump(w, v)
}
