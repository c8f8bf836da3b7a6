// Command dg-slice computes a static program slice of an LLVM IR
// module and writes the sliced module back out as textual IR.
package main

import (
	"fmt"
	"os"

	"github.com/llir/llvm/asm"
	"github.com/spf13/cobra"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/slicer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := config.SlicerOptions{PTA: config.DefaultPTAOptions(), DDA: config.DefaultDDAOptions(), CD: config.DefaultCDOptions()}
	var pta, cdAlgo string

	cmd := &cobra.Command{
		Use:   "dg-slice FILE.ll",
		Short: "Slice an LLVM IR module to a given criterion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.InputFile = args[0]
			opts.PTA.AnalysisType = parsePTA(pta)
			opts.CD.Algorithm = parseCD(cdAlgo)

			m, err := asm.ParseFile(opts.InputFile)
			if err != nil {
				return fmt.Errorf("dg-slice: %w", err)
			}

			if _, err := slicer.ResolveCriterion(m, opts); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}

			if err := slicer.Slice(m, opts); err != nil {
				return err
			}

			out := os.Stdout
			if opts.OutputFile != "" {
				f, err := os.Create(opts.OutputFile)
				if err != nil {
					return fmt.Errorf("dg-slice: %w", err)
				}
				defer f.Close()
				out = f
			}
			fmt.Fprint(out, m)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.SlicingCriteria, "sc", "", "slicing criterion, function:line[:col]")
	flags.StringVar(&opts.LegacySlicingCriteria, "legacy-sc", "", "slicing criterion, func#bb#n")
	flags.BoolVar(&opts.ForwardSlicing, "forward", false, "also compute the forward slice")
	flags.BoolVar(&opts.RemoveSlicingCriteria, "remove-criteria", false, "drop the criterion instruction itself from the result")
	flags.BoolVar(&opts.CriteriaAreNextInstr, "criteria-are-next-instr", false, "slice from the instruction following the matched line")
	flags.StringSliceVar(&opts.PreservedFunctions, "preserve", nil, "functions whose bodies are never cut")
	flags.StringVarP(&opts.OutputFile, "output", "o", "", "output file (default stdout)")
	flags.StringVar(&pta, "pta", "fi", "pointer analysis: fi, fs, or inv")
	flags.StringVar(&cdAlgo, "cd", "classic", "control dependence: classic, ntscd, ntscd2, ntscd-ranganath, or ntscd-legacy")
	flags.BoolVar(&opts.PTA.Threads, "threads", false, "model pthread fork/join")

	return cmd
}

func parsePTA(s string) config.PTAAnalysisType {
	switch s {
	case "fs":
		return config.PTAFlowSensitive
	case "inv":
		return config.PTAFlowSensitiveInvalidating
	default:
		return config.PTAFlowInsensitive
	}
}

func parseCD(s string) config.CDAlgorithm {
	switch s {
	case "ntscd":
		return config.CDNTSCD
	case "ntscd2":
		return config.CDNTSCD2
	case "ntscd-ranganath":
		return config.CDNTSCDRanganath
	case "ntscd-legacy":
		return config.CDNTSCDLegacy
	default:
		return config.CDClassic
	}
}
