package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davicafu/omegacache/pkg/cache"
)

var errNotFound = errors.New("key not found")

var (
	getCmd = &cobra.Command{
		Use:   "get [column] [key]",
		Short: "Print the value stored under key as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			col, err := a.Column(args[0])
			if err != nil {
				return err
			}
			value, found, err := cache.Get[interface{}](cmd.Context(), a.Engine, col, args[1])
			if err != nil {
				return err
			}
			if !found {
				return errNotFound
			}

			out, err := json.Marshal(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	putCmd = &cobra.Command{
		Use:   "put [column] [key] [json]",
		Short: "Store a JSON value under key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value interface{}
			if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
				return fmt.Errorf("value must be JSON: %w", err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			col, err := a.Column(args[0])
			if err != nil {
				return err
			}
			if err := cache.Insert(cmd.Context(), a.Engine, col, args[1], value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stored")
			return nil
		},
	}

	dropCmd = &cobra.Command{
		Use:   "drop [column]",
		Short: "Remove every entry of a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			col, err := a.Column(args[0])
			if err != nil {
				return err
			}
			if err := a.Engine.TryDropColumn(cmd.Context(), col); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "column %s dropped\n", col.Name())
			return nil
		},
	}

	columnsCmd = &cobra.Command{
		Use:   "columns",
		Short: "List the configured columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, col := range cfg.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%ds\n", col.Name(), col.TTLSeconds())
			}
			return nil
		},
	}
)
