package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cushionpp/cushion/pkg/cushion"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	includePaths       []string
	systemPaths        []string
	scanPaths          []string
	defineFlags        []string
	undefineFlags      []string
	outputPath         string
	depfilePath        string
	featureFlags       []string
	forbidRedefinition bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cushion [file...]",
		Short:         "cushion is a standalone C preprocessor for downstream code-generation tools",
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(args)
			if err != nil {
				fmt.Fprintf(errOut, "cushion: %v\n", err)
				return err
			}
			return runEngine(cfg, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to the full-inclusion search path")
	rootCmd.Flags().StringArrayVar(&systemPaths, "isystem", nil, "Add directory to the full-inclusion system search path")
	rootCmd.Flags().StringArrayVar(&scanPaths, "scan", nil, "Add directory to the scan-only search path (macros/deps only, never emitted)")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write preprocessed output to this path instead of stdout")
	rootCmd.Flags().StringVar(&depfilePath, "depfile", "", "Write a Make-style dependency file to this path")
	rootCmd.Flags().StringArrayVar(&featureFlags, "feature", nil, "Enable a non-standard extension (defer, wrapper-macro, statement-accumulator, snippet)")
	rootCmd.Flags().BoolVar(&forbidRedefinition, "forbid-macro-redefinition", false, "Make an incompatible macro redefinition an error")

	return rootCmd
}

func buildConfig(inputs []string) (*cushion.Config, error) {
	cfg := &cushion.Config{
		Inputs:             inputs,
		Undefines:          undefineFlags,
		ForbidRedefinition: forbidRedefinition,
	}
	for _, d := range defineFlags {
		if idx := strings.Index(d, "="); idx >= 0 {
			cfg.Defines = append(cfg.Defines, cushion.MacroDef{Name: d[:idx], Value: d[idx+1:]})
		} else {
			cfg.Defines = append(cfg.Defines, cushion.MacroDef{Name: d})
		}
	}
	for _, p := range includePaths {
		cfg.SearchPaths = append(cfg.SearchPaths, cushion.SearchPath{Dir: p, Kind: cushion.SearchFull})
	}
	for _, p := range systemPaths {
		cfg.SearchPaths = append(cfg.SearchPaths, cushion.SearchPath{Dir: p, Kind: cushion.SearchFull})
	}
	for _, p := range scanPaths {
		cfg.SearchPaths = append(cfg.SearchPaths, cushion.SearchPath{Dir: p, Kind: cushion.SearchScan})
	}
	for _, f := range featureFlags {
		switch f {
		case "defer":
			cfg.Features.Defer = true
		case "wrapper-macro":
			cfg.Features.WrapperMacro = true
		case "statement-accumulator":
			cfg.Features.StatementAccumulator = true
		case "snippet":
			cfg.Features.Snippet = true
		default:
			return nil, fmt.Errorf("unknown --feature %q", f)
		}
	}
	return cfg, nil
}

// runEngine opens the files named by the output/depfile flags (stdout when
// -o is absent, no depfile when --depfile is absent), wires them into cfg,
// and runs the engine.
func runEngine(cfg *cushion.Config, out, errOut io.Writer) error {
	dest := out
	targetName := outputPath
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			fmt.Fprintf(errOut, "cushion: %v\n", err)
			return err
		}
		defer f.Close()
		dest = f
	} else {
		targetName = "-"
	}
	cfg.Output = dest
	cfg.DepfileTargetName = targetName

	if depfilePath != "" {
		depFile, err := os.Create(depfilePath)
		if err != nil {
			fmt.Fprintf(errOut, "cushion: %v\n", err)
			return err
		}
		defer depFile.Close()
		cfg.DepfileOutput = depFile
	}

	engine, err := cushion.NewEngine(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "cushion: %v\n", err)
		return err
	}
	if err := engine.Run(); err != nil {
		fmt.Fprintf(errOut, "cushion: %v\n", err)
		return err
	}
	return nil
}
