package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daimatz/invokergen/pkg/classfile"
)

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file.class>...",
		Short: "Print the disassembly of class files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, path := range args {
				cf, err := classfile.ParseFile(path)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := classfile.Disassemble(out, cf); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}
}
