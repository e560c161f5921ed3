package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/pterm/pterm"

	"tsgen/pkg/config"
	"tsgen/pkg/driver"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
)

const historyFile = ".tsgen_history"

var (
	errorStyle = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	warnStyle  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	noteStyle  = pterm.NewStyle(pterm.BgLightBlue, pterm.FgBlack)
	okStyle    = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a tsgen.toml options file")
		dumpIR     = flag.Bool("dump-ir", false, "print the lowered IR module")
		runMain    = flag.Bool("run", false, "execute main() through the reference interpreter")
		repl       = flag.Bool("repl", false, "start the interactive IR inspector after lowering")
	)
	flag.Parse()

	opts := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			printError("CONFIG", err)
			os.Exit(1)
		}
		opts = loaded
	} else if _, err := os.Stat("tsgen.toml"); err == nil {
		if loaded, err := config.LoadFile("tsgen.toml"); err == nil {
			opts = loaded
		}
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tsgen [flags] <program.ast.json>")
		fmt.Fprintln(os.Stderr, "  the input is the parser collaborator's JSON AST dump")
		flag.PrintDefaults()
		os.Exit(2)
	}

	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		printError("READ", err)
		os.Exit(1)
	}
	prog, err := driver.DecodeProgram(data)
	if err != nil {
		printError("AST", err)
		os.Exit(1)
	}

	result := driver.Compile(prog, opts)
	displayDiagnostics(result.Diagnostics)
	if !result.OK {
		errorStyle.Print(" FAIL ")
		pterm.FgRed.Println(" " + filepath.Base(path))
		os.Exit(1)
	}
	okStyle.Print(" OK ")
	pterm.FgLightGreen.Println(" " + filepath.Base(path))

	if *dumpIR {
		fmt.Print(ir.Dump(result.Module))
	}

	if *runMain {
		interp, err := ir.NewInterp(result.Module)
		if err != nil {
			printError("RUN", err)
			os.Exit(1)
		}
		if _, err := interp.Call("main"); err != nil {
			printError("RUN", err)
			os.Exit(1)
		}
		for _, line := range interp.Output {
			fmt.Println(line)
		}
	}

	if *repl {
		runRepl(result.Module)
	}
}

func printError(tag string, err error) {
	errorStyle.Print(" " + tag + " ")
	pterm.FgRed.Println(" " + err.Error())
}

func displayDiagnostics(diags []*errors.Diagnostic) {
	for _, d := range diags {
		switch d.Severity {
		case errors.SeverityError:
			errorStyle.Print(" ERROR ")
		case errors.SeverityWarning:
			warnStyle.Print(" WARN ")
		default:
			noteStyle.Print(" NOTE ")
		}
		pterm.FgLightWhite.Printf(" %d:%d %s\n", d.Position.Line, d.Position.Column, d.Msg)
		if d.Position.Source != nil {
			lines := d.Position.Source.Lines()
			if idx := d.Position.Line - 1; idx >= 0 && idx < len(lines) {
				pterm.FgGray.Println("  " + strings.TrimRight(lines[idx], " \t\r\n"))
				pterm.FgGray.Println("  " + strings.Repeat(" ", max(d.Position.Column-1, 0)) + "^")
			}
		}
		for _, rel := range d.Related {
			pterm.FgGray.Printf("    note %d:%d %s\n", rel.Position.Line, rel.Position.Column, rel.Msg)
		}
	}
}

const replHelp = `commands:
  :funcs               list functions in the module
  :globals             list globals
  :dump [name]         dump the module (or one function)
  :call <fn> [args]    run a function through the interpreter (numeric args)
  :quit                exit
`

// runRepl is the interactive IR inspector.
func runRepl(module *ir.Module) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyPath()); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath()); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	interp, err := ir.NewInterp(module)
	if err != nil {
		printError("REPL", err)
		return
	}

	fmt.Println("tsgen IR inspector; :help for commands")
	for {
		input, err := line.Prompt("ir> ")
		if err != nil {
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		switch fields[0] {
		case ":quit", ":q":
			return
		case ":help":
			fmt.Print(replHelp)
		case ":funcs":
			for _, op := range module.BodyBlock().Ops {
				if op.Kind == ir.OpFunc {
					fmt.Println(" ", op.StringAttr("sym_name"))
				}
			}
		case ":globals":
			for _, op := range module.BodyBlock().Ops {
				if op.Kind == ir.OpGlobal {
					fmt.Println(" ", op.StringAttr("sym_name"))
				}
			}
		case ":dump":
			if len(fields) == 1 {
				fmt.Print(ir.Dump(module))
				continue
			}
			if fn := module.FindFunc(fields[1]); fn != nil {
				fmt.Print(ir.DumpOp(fn))
			} else {
				printError("DUMP", fmt.Errorf("no function %q", fields[1]))
			}
		case ":call":
			if len(fields) < 2 {
				printError("CALL", fmt.Errorf("usage: :call <fn> [numeric args]"))
				continue
			}
			var args []interface{}
			for _, a := range fields[2:] {
				if iv, err := strconv.ParseInt(a, 10, 64); err == nil {
					args = append(args, iv)
				} else if fv, err := strconv.ParseFloat(a, 64); err == nil {
					args = append(args, fv)
				} else {
					args = append(args, a)
				}
			}
			out, err := interp.Call(fields[1], args...)
			if err != nil {
				printError("CALL", err)
				continue
			}
			for _, l := range interp.Output {
				fmt.Println(l)
			}
			interp.Output = nil
			fmt.Printf("=> %v\n", out)
		default:
			printError("REPL", fmt.Errorf("unknown command %q", fields[0]))
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}
