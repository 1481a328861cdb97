// sciv inspects compiled game scripts, the running VM state and save games.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/sciv/manifest"
	"github.com/chazu/sciv/resource"
	"github.com/chazu/sciv/vm"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("sciv.cli")

func main() {
	verbose := flag.Int("v", 0, "Log verbosity (0 = errors only, 2 = debug)")
	dir := flag.String("dir", ".", "Game directory; game.toml is searched upward from here")
	format := flag.String("o", "text", "Output format: text or yaml")
	coredump := flag.Bool("coredump", false, "Include a segment table in new saves")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sciv [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  scripts                      List script and vocabulary resources\n")
		fmt.Fprintf(os.Stderr, "  objects <script>             Load a script and list its objects\n")
		fmt.Fprintf(os.Stderr, "  lookup <script> <obj> <sel>  Resolve a selector on an object\n")
		fmt.Fprintf(os.Stderr, "  selectors                    List selector names\n")
		fmt.Fprintf(os.Stderr, "  classes                      List the class table\n")
		fmt.Fprintf(os.Stderr, "  segments [script...]         Load scripts and print the segment table\n")
		fmt.Fprintf(os.Stderr, "  debug <script> <export>      Call an export under the debugger console\n")
		fmt.Fprintf(os.Stderr, "  saves                        List catalogued saves\n")
		fmt.Fprintf(os.Stderr, "  save <name>                  Boot the game and save its state\n")
		fmt.Fprintf(os.Stderr, "  restore <id>                 Restore a save and print its segments\n")
		fmt.Fprintf(os.Stderr, "  delete-save <id>             Remove a save\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	commonlog.Configure(*verbose, nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	out, err := newOutput(os.Stdout, *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	g, err := openGame(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(g, out, args, *coredump); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(g *game, out *output, args []string, coredump bool) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "scripts":
		return cmdScripts(g, out)
	case "objects":
		return cmdObjects(g, out, rest)
	case "lookup":
		return cmdLookup(g, out, rest)
	case "selectors":
		return cmdSelectors(g, out)
	case "classes":
		return cmdClasses(g, out)
	case "segments":
		return cmdSegments(g, out.w, rest)
	case "debug":
		return cmdDebug(g, rest)
	case "saves":
		return cmdSaves(g, out)
	case "save":
		return cmdSave(g, out.w, rest, coredump)
	case "restore":
		return cmdRestore(g, out.w, rest)
	case "delete-save":
		return cmdDeleteSave(g, rest)
	default:
		return fmt.Errorf("unknown command %q (see sciv -h)", cmd)
	}
}

// game bundles the configuration, resources and engine of one game.
type game struct {
	manifest *manifest.Manifest
	res      *resource.Dir
	engine   *vm.EngineState
}

func openGame(dir string) (*game, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		log.Infof("no %s found above %s, using defaults", manifest.FileName, dir)
		if m, err = manifest.Parse(nil); err != nil {
			return nil, err
		}
		if m.Dir, err = filepath.Abs(dir); err != nil {
			return nil, err
		}
	}
	opts, err := m.Options()
	if err != nil {
		return nil, err
	}
	res := resource.NewDir(m.ResourceDirPaths()...)
	e, err := vm.NewEngineState(res, opts...)
	if err != nil {
		return nil, fmt.Errorf("booting %s: %w", m.Dir, err)
	}
	return &game{manifest: m, res: res, engine: e}, nil
}

func usageError(usage string) error {
	return fmt.Errorf("usage: sciv %s", usage)
}
