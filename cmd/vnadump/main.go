// Command vnadump assembles method listings, runs the value-numbering
// analysis to fixpoint, and dumps the dataflow facts.
//
// Usage:
//
//	vnadump method.vna
//	vnadump -v 1 -no-compact method.vna
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/huahang/findbugs"
	"github.com/huahang/findbugs/bytecode"
	"github.com/huahang/findbugs/cfg"
	"github.com/huahang/findbugs/internal/asm"
	"github.com/huahang/findbugs/vna"
)

func main() {
	app := &cli.App{
		Name:      "vnadump",
		Usage:     "run value-numbering dataflow analysis over method listings",
		ArgsUsage: "<listing>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "v",
				Usage: "log verbosity (1 shows compaction stats)",
			},
			&cli.BoolFlag{
				Name:  "no-compact",
				Usage: "skip post-fixpoint value-number compaction",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vnadump:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no listings given")
	}

	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if err := fs.Set("v", strconv.Itoa(c.Int("v"))); err != nil {
		return err
	}
	defer klog.Flush()
	logger := klog.Background()

	// A failure in one method's analysis is reported and does not stop the
	// remaining listings.
	failed := 0
	for _, path := range c.Args().Slice() {
		if err := dumpListing(c, logger, path); err != nil {
			fmt.Fprintf(os.Stderr, "vnadump: %s: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d listings failed", failed, c.NArg())
	}
	return nil
}

func dumpListing(c *cli.Context, logger klog.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	prog, err := asm.Parse(f)
	if err != nil {
		return err
	}
	return runMethod(c, logger, prog)
}

func runMethod(c *cli.Context, logger klog.Logger, prog *asm.Program) error {
	analysis, df, err := findbugs.RunValueNumberAnalysis(prog.Method, prog.Graph,
		vna.WithLogger(logger),
		vna.WithLookupFailureCallback(func(loc cfg.Location, ref bytecode.FieldRef, err error) {
			logger.Info("unresolved field reference", "location", loc, "field", ref, "err", err)
		}))
	if err != nil {
		return err
	}

	kind := "static"
	if !prog.Method.IsStatic() {
		kind = "instance"
	}
	fmt.Printf("method %s (%s, %d locals): fixpoint in %d passes, %d values\n",
		prog.Method.Name, kind, prog.Method.NumLocals, df.NumPasses(), analysis.NumValuesAllocated())

	if !c.Bool("no-compact") {
		before := analysis.NumValuesAllocated()
		if err := analysis.CompactValueNumbers(df); err != nil {
			return err
		}
		fmt.Printf("compaction: %d -> %d values\n", before, analysis.NumValuesAllocated())
	}

	for _, b := range prog.Graph.Blocks() {
		handler := ""
		if b.IsExceptionHandler() {
			handler = " (handler)"
		}
		fmt.Printf("block %d%s:\n", b.ID(), handler)
		for i, ins := range b.Instructions() {
			loc := cfg.LocationOf(b, i)
			fmt.Printf("  %-28s %s\n", ins.Mnemonic(), analysis.FactAtLocation(loc))
		}
		fmt.Printf("  => %s\n", df.ResultFact(b))
	}
	return nil
}
