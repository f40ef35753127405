package main

import (
	"fmt"
	"runtime"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/daimatz/invokergen/pkg/invoker"
	"github.com/daimatz/invokergen/pkg/logging"
	"github.com/daimatz/invokergen/pkg/spec"
	"github.com/daimatz/invokergen/pkg/vm"
)

// genResult is the outcome of one spec.
type genResult struct {
	label string
	class string
	err   error
}

func genCmd(opts *globalOptions) *cobra.Command {
	var (
		file        string
		classPath   string
		outDir      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a batch of invokers described in a YAML file",
		Long: "Resolves and generates every invoker of the spec file concurrently. " +
			"With --out, each generated class and its trace are written below that directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}
			s, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			ms, err := spec.ParseFile(file)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = s.cfg.Debug.Location
			}

			// one scope, VM and factory per class path
			type target struct {
				scope   *vm.Scope
				factory *invoker.Factory
			}
			targets := make(map[string]*target)
			extra := []invoker.Option{invoker.WithMetrics(s.metrics)}
			if outDir != "" {
				extra = append(extra, invoker.WithSink(invoker.DirSink{Dir: outDir, Trace: true}))
			}
			for _, is := range ms.Invokers {
				cp := is.ClassPath
				if cp == "" {
					cp = s.classPath(classPath)
				}
				if _, ok := targets[cp]; ok {
					continue
				}
				scope, err := newScope("gen-"+cp, cp)
				if err != nil {
					return err
				}
				f, err := invoker.FactoryFromConfig(s.cfg, vm.NewVM(scope), scope, extra...)
				if err != nil {
					return err
				}
				targets[cp] = &target{scope: scope, factory: f}
			}

			results := make([]genResult, len(ms.Invokers))
			var mu sync.Mutex
			failed := 0

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)
			for i, is := range ms.Invokers {
				cp := is.ClassPath
				if cp == "" {
					cp = s.classPath(classPath)
				}
				tg := targets[cp]
				g.Go(func() error {
					res := genResult{label: is.Label()}
					d, err := is.Resolve(tg.scope)
					if err == nil {
						var inv *invoker.MethodInvoker
						if inv, err = tg.factory.Create(ctx, d); err == nil {
							res.class = inv.ClassName()
						}
					}
					if err != nil {
						logging.Op().Warn("invoker generation failed", "spec", res.label, "error", err)
						res.err = err
						mu.Lock()
						failed++
						mu.Unlock()
					}
					results[i] = res
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SPEC\tCLASS\tERROR")
			for _, r := range results {
				errText := "-"
				if r.err != nil {
					errText = r.err.Error()
				}
				class := r.class
				if class == "" {
					class = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.label, class, errText)
			}
			w.Flush()

			if failed > 0 {
				return fmt.Errorf("%d of %d invokers failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Spec file (YAML, one or more documents)")
	cmd.Flags().StringVar(&classPath, "classpath", "", "Directories holding class files, for specs without a classpath")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write generated classes and traces below this directory")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", runtime.GOMAXPROCS(0), "Maximum concurrent generations")
	cmd.MarkFlagRequired("file")
	return cmd
}
