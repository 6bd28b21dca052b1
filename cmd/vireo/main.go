// Vireo CLI - optimizes compiled class images.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/chazu/vireo/pkg/bytecode"
	"github.com/chazu/vireo/pkg/callgraph"
	"github.com/chazu/vireo/pkg/closure"
	"github.com/chazu/vireo/pkg/config"
	"github.com/chazu/vireo/pkg/diag"
	"github.com/chazu/vireo/pkg/image"
	"github.com/chazu/vireo/pkg/lookup"
	"github.com/chazu/vireo/pkg/optimizer"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	confDir := flag.String("C", ".", "Directory containing vireo.toml")
	verbose := flag.Bool("v", false, "Verbose output")
	disasm := flag.Bool("S", false, "Print disassembly of the optimized classes")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	globalInline := flag.Bool("global-inline", false, "Treat every rewritten callee as inlinable")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vireo [options]\n\n")
		fmt.Fprintf(os.Stderr, "Optimizes the class image named by vireo.toml and writes the result.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vireo                  # Optimize using ./vireo.toml\n")
		fmt.Fprintf(os.Stderr, "  vireo -C ./app -v      # Optimize app/, report each pass\n")
		fmt.Fprintf(os.Stderr, "  vireo -S               # Optimize and print the result\n")
		os.Exit(1)
	}
	flag.Parse()

	if *noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("vireo")

	cfg, err := config.Load(*confDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *globalInline {
		cfg.Optimizer.GlobalInline = true
	}

	classes, err := image.ReadFile(cfg.InputImagePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Infof("loaded %d classes from %s", len(classes), cfg.InputImagePath())

	pool := lookup.NewPool(classes...)
	if path := cfg.LibIndexPath(); path != "" {
		ix, err := lookup.OpenLibIndex(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer ix.Close()
		pool.SetLibIndex(ix)
		log.Infof("using library index %s", path)
	}

	registry := closure.NewRegistry()
	graph := callgraph.New()
	for _, c := range classes {
		registry.Scan(c)
		graph.ScanClass(c)
	}

	warnings := diag.NewCollector()
	if cfg.Optimizer.ClosureCalls {
		pass := optimizer.NewClosureCallPass(registry, graph, pool, warnings, optimizer.Config{
			GlobalInline: cfg.Optimizer.GlobalInline,
		})
		n, err := pass.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log.Infof("closure calls: %d call sites rewritten, %d creation sites seen", n, registry.Len())
		if *verbose || cfg.Optimizer.Verbose {
			fmt.Printf("closure calls: rewrote %d call sites\n", n)
		}
	}

	warnC := color.New(color.FgYellow)
	for _, w := range warnings.Warnings() {
		warnC.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if err := image.WriteFile(cfg.OutputImagePath(), classes); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Infof("wrote %s", cfg.OutputImagePath())

	if *disasm {
		nameC := color.New(color.FgCyan, color.Bold)
		for _, c := range classes {
			nameC.Printf("class %s\n", c.Name)
			fmt.Print(bytecode.DisassembleClass(c))
			fmt.Println()
		}
	}
}
