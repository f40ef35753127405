package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daimatz/invokergen/pkg/vm"
)

func runCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <Class.class>",
		Short: "Run the main method of a class file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			filename := args[0]
			dir := filepath.Dir(filename)
			className := strings.TrimSuffix(filepath.Base(filename), ".class")

			scope, err := newScope("app", dir)
			if err != nil {
				return err
			}
			v := vm.NewVM(scope)
			v.Stdout = cmd.OutOrStdout()
			return v.Execute(className)
		},
	}
}
