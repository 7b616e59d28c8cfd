// Command daisy is the DAISY compiler driver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/driver"
)

const (
	exitOK       = 0
	exitDiags    = 1
	exitInternal = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := core.LoadConfig()

	root := &cobra.Command{
		Use:           "daisy",
		Short:         "DAISY compiler: dual-surface source to portable C11",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.BuildDir, "build-dir", cfg.BuildDir, "artifact directory")
	root.PersistentFlags().StringVar(&cfg.CacheDSN, "cache-dsn", cfg.CacheDSN, "build cache index (file path or libsql URL)")
	root.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "verbose cache logging")

	root.AddCommand(buildCmd(cfg), cacheCmd(cfg), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitInternal
	}
	return exitOK
}

func buildCmd(cfg *core.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <path>",
		Short: "Compile one file and its imports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := driver.New(cfg)
			if err != nil {
				return err
			}
			res, err := d.Build(args[0])
			if err != nil {
				return err
			}
			if res.HasErrors() {
				for _, diag := range res.Diags {
					printDiag(res, diag)
				}
				os.Exit(exitDiags)
			}
			for _, r := range res.Reports {
				status := "compiled"
				if r.CacheHit {
					status = "cached"
				}
				fmt.Printf("%-10s %s\n", status, r.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cfg.EmitIR, "emit-ir", false, "write <module>.ir.txt dumps")
	cmd.Flags().BoolVar(&cfg.Profile, "profile", false, "write build/profile.json with per-phase timings")
	cmd.Flags().BoolVar(&cfg.RTChecks, "rt-checks", cfg.RTChecks, "guard view/buffer/vector accesses at runtime")
	cmd.Flags().BoolVar(&cfg.LTO, "lto", cfg.LTO, "mark translation units for link-time optimization")
	return cmd
}

func printDiag(res *driver.Result, d core.Diagnostic) {
	file := ""
	if src, ok := res.Sources[d.Span.FileID]; ok {
		file = src.Path + ":"
	}
	fmt.Fprintf(os.Stderr, "%s%d:%d: %s: %s\n", file, d.Span.Line, d.Span.Col, d.Kind, d.Message)
	for _, sec := range d.Secondary {
		fmt.Fprintf(os.Stderr, "  note: %s at %d:%d\n", sec.Message, sec.Span.Line, sec.Span.Col)
	}
}

func cacheCmd(cfg *core.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the build cache index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := driver.New(cfg)
			if err != nil {
				return err
			}
			s, err := driver.Stats(d.DB())
			if err != nil {
				return err
			}
			fmt.Printf("artifacts: %d\nruns: %d\nhits: %d\n", s.Artifacts, s.Runs, s.Hits)
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := driver.New(cfg)
			if err != nil {
				return err
			}
			return driver.Clear(d.DB())
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print compiler version and ABI major",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("daisyc %s (abi %d)\n", core.Version, core.ABIMajor)
		},
	}
}
