package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daimatz/invokergen/pkg/invoker"
	"github.com/daimatz/invokergen/pkg/vm"
)

func callCmd(opts *globalOptions) *cobra.Command {
	var (
		classPath  string
		params     []string
		descriptor string
		repeat     int
	)

	cmd := &cobra.Command{
		Use:   "call <owner> <method> [arg...]",
		Short: "Generate an invoker for a method and call it",
		Long: "Resolves owner.method, generates an invoker for it and calls it with the " +
			"given arguments, converted to the parameter types. Instance methods are " +
			"called on a new instance built with the owner's no-arg constructor.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if repeat < 1 {
				return fmt.Errorf("--repeat must be at least 1")
			}
			s, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			scope, err := newScope("app", s.classPath(classPath))
			if err != nil {
				return err
			}
			machine := vm.NewVM(scope)
			machine.Stdout = cmd.OutOrStdout()

			owner, method := args[0], args[1]
			var d invoker.Descriptor
			if descriptor != "" {
				d, err = invoker.ResolveDescriptor(scope, owner, method, descriptor)
			} else {
				types := make([]invoker.Type, len(params))
				for i, p := range params {
					if types[i], err = invoker.ParseType(p); err != nil {
						return err
					}
				}
				d, err = invoker.Resolve(scope, owner, method, types...)
			}
			if err != nil {
				return err
			}

			values := args[2:]
			if len(values) != d.NumParams() {
				return fmt.Errorf("%s takes %d arguments, got %d", d, d.NumParams(), len(values))
			}
			callArgs := make([]interface{}, len(values))
			for i, v := range values {
				if callArgs[i], err = parseArg(d.Param(i), v); err != nil {
					return fmt.Errorf("argument %d: %w", i, err)
				}
			}

			f, err := invoker.FactoryFromConfig(s.cfg, machine, scope, invoker.WithMetrics(s.metrics))
			if err != nil {
				return err
			}
			inv, err := f.Create(cmd.Context(), d)
			if err != nil {
				return err
			}

			var receiver interface{}
			if !d.IsStatic() {
				c, err := scope.LoadClass(d.Owner().InternalName())
				if err != nil {
					return err
				}
				if receiver, err = machine.NewInstance(c); err != nil {
					return fmt.Errorf("construct receiver: %w", err)
				}
			}

			var ret interface{}
			start := time.Now()
			for i := 0; i < repeat; i++ {
				if ret, err = inv.Call(receiver, callArgs...); err != nil {
					return err
				}
			}
			elapsed := time.Since(start)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatResult(ret))
			if repeat > 1 {
				fmt.Fprintf(out, "%d calls via %s, %v per call\n", repeat, inv.ClassName(), elapsed/time.Duration(repeat))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&classPath, "classpath", "", "Directories holding class files")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter type, once per parameter (e.g. int, java.lang.String)")
	cmd.Flags().StringVar(&descriptor, "descriptor", "", "JVM method descriptor, instead of --param")
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "Number of calls")
	cmd.MarkFlagsMutuallyExclusive("param", "descriptor")
	return cmd
}

func formatResult(v interface{}) string {
	switch r := v.(type) {
	case nil:
		return "null"
	case *vm.JArray:
		return fmt.Sprintf("%s (length %d)", r.Descriptor, len(r.Elements))
	}
	if b, err := vm.Box(v); err == nil {
		return vm.StringOf(b)
	}
	return fmt.Sprint(v)
}
