// Command cairo-vm runs a compiled Cairo Zero program end to end: load,
// execute, and (optionally) emit the trace/memory/public-input files a
// STARK prover consumes (spec §6 "CLI surface").
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/shardlabs/cairo-vm-go/pkg/layouts"
	"github.com/shardlabs/cairo-vm-go/pkg/runners/publicinput"
	"github.com/shardlabs/cairo-vm-go/pkg/runners/zero"
)

type cliArgs struct {
	programPath          string
	traceFile            string
	memoryFile           string
	airPublicInputFile   string
	layout               string
	proofMode            bool
	allowMissingBuiltins bool
	maxSteps             uint64
	programSegmentSize   uint64
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	args, err := parseArgs()
	if err != nil {
		logrus.WithError(err).Error("invalid arguments")
		os.Exit(1)
	}

	if err := run(args); err != nil {
		logrus.WithError(err).Error("run failed")
		os.Exit(1)
	}
}

func parseArgs() (*cliArgs, error) {
	var args cliArgs
	flag.StringVar(&args.traceFile, "trace_file", "", "write the relocated execution trace to this path")
	flag.StringVar(&args.memoryFile, "memory_file", "", "write the relocated memory to this path")
	flag.StringVar(&args.airPublicInputFile, "air_public_input", "", "write the public input JSON to this path")
	flag.StringVar(&args.layout, "layout", layouts.Plain, "the layout to run under (plain, small, dynamic, all_cairo, recursive, starknet)")
	flag.BoolVar(&args.proofMode, "proof_mode", false, "run in proof mode, padding the trace to a power of two")
	flag.BoolVar(&args.allowMissingBuiltins, "allow_missing_builtins", false, "don't fail if the program declares a builtin the layout doesn't provide")
	flag.Uint64Var(&args.maxSteps, "max_steps", 10_000_000, "abort the run after this many steps")
	flag.Uint64Var(&args.programSegmentSize, "program_segment_size", 0, "override the program segment's declared size (0 uses the program's data length)")
	flag.Parse()

	if flag.NArg() != 1 {
		return nil, errors.New("usage: cairo-vm [flags] <program.json>")
	}
	args.programPath = flag.Arg(0)
	return &args, nil
}

func run(args *cliArgs) error {
	raw, err := os.ReadFile(args.programPath)
	if err != nil {
		return errors.Wrap(err, "reading program file")
	}

	program, err := zero.LoadProgram(raw)
	if err != nil {
		return errors.Wrap(err, "loading program")
	}

	runner, err := zero.NewRunner(program, zero.RunnerOptions{
		Layout:               args.layout,
		ProofMode:            args.proofMode,
		MaxSteps:             args.maxSteps,
		AllowMissingBuiltins: args.allowMissingBuiltins,
		ProgramSegmentSize:   args.programSegmentSize,
	})
	if err != nil {
		return errors.Wrap(err, "constructing runner")
	}

	logrus.WithFields(logrus.Fields{
		"layout":     args.layout,
		"proof_mode": args.proofMode,
	}).Info("starting run")

	if err := runner.Run(); err != nil {
		return errors.Wrap(err, "running program")
	}
	if err := runner.EndRun(); err != nil {
		return errors.Wrap(err, "ending run")
	}
	if err := runner.ReadReturnValues(); err != nil {
		return errors.Wrap(err, "reading return values")
	}
	if err := runner.VerifySecureRunner(); err != nil {
		return errors.Wrap(err, "secure-run verification")
	}
	if err := runner.FinalizeSegments(); err != nil {
		return errors.Wrap(err, "finalizing segments")
	}

	logrus.WithField("steps", runner.Vm.CurrentStep).Info("run finished")

	if args.traceFile != "" || args.memoryFile != "" {
		traceBytes, memoryBytes, err := runner.BuildProof()
		if err != nil {
			return errors.Wrap(err, "relocating trace/memory")
		}
		if args.traceFile != "" {
			if err := os.WriteFile(args.traceFile, traceBytes, 0o644); err != nil {
				return errors.Wrap(err, "writing trace file")
			}
		}
		if args.memoryFile != "" {
			if err := os.WriteFile(args.memoryFile, memoryBytes, 0o644); err != nil {
				return errors.Wrap(err, "writing memory file")
			}
		}
	}

	if args.airPublicInputFile != "" {
		pi, err := runner.BuildPublicInput()
		if err != nil {
			return errors.Wrap(err, "building public input")
		}
		encoded, err := publicinput.Encode(pi)
		if err != nil {
			return errors.Wrap(err, "encoding public input")
		}
		if err := os.WriteFile(args.airPublicInputFile, encoded, 0o644); err != nil {
			return errors.Wrap(err, "writing public input file")
		}
	}

	fmt.Fprintln(os.Stdout, "ok")
	return nil
}
