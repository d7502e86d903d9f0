package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/neojs/compiler"
	"github.com/chazu/neojs/engine"
	"github.com/chazu/neojs/vm"
)

const (
	historyFile = ".neo_history"
	promptMain  = "> "
	promptCont  = "... "
)

func cmdRepl(ctx context.Context, options engine.Options) int {
	fmt.Println("neo REPL (type :help for commands, :quit or Ctrl-D to leave)")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	e := engine.New(options)
	for {
		code, ok := readInput(ln)
		if !ok {
			fmt.Println()
			break
		}
		input := strings.TrimSpace(code)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ":") {
			if done := replCommand(e, input); done {
				return 0
			}
			continue
		}

		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		evalAndPrint(ctx, e, code)
	}
	return 0
}

// readInput reads one complete entry, prompting for continuation lines
// while the source so far ends in the middle of a construct.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			// Ctrl-C drops the pending entry.
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if !needsMore(b.String()) {
			return b.String(), true
		}
	}
}

// needsMore reports whether src is a prefix of a longer valid entry.
func needsMore(src string) bool {
	_, err := compiler.Compile(src, "repl", compiler.WithGlobalScope())
	return err != nil && compiler.IsIncomplete(err)
}

func evalAndPrint(ctx context.Context, e *engine.Engine, code string) {
	evalCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	result, err := e.Eval(evalCtx, code)
	if err != nil {
		var abort *vm.Abort
		if errors.As(err, &abort) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			return
		}
		fmt.Fprintln(os.Stderr, describeError(err))
		return
	}
	fmt.Println(vm.Inspect(result))
}

// replCommand handles a colon command and reports whether the session
// should end.
func replCommand(e *engine.Engine, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Println("Commands:")
		fmt.Println("  :help          Show this help")
		fmt.Println("  :disasm <src>  Show the bytecode for a snippet")
		fmt.Println("  :globals       List the names bound in the global scope")
		fmt.Println("  :quit          Leave the REPL")
		fmt.Println()
		fmt.Println("Entries that end mid-construct continue on the next line.")
	case ":disasm":
		src := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		prog, err := compiler.Compile(src, "repl", compiler.WithGlobalScope())
		if err != nil {
			fmt.Fprintln(os.Stderr, describeError(err))
			return false
		}
		fmt.Print(prog.Disassemble())
	case ":globals":
		for _, name := range e.Realm().Global.Names() {
			fmt.Println(name)
		}
	default:
		fmt.Printf("Unknown command %s. Type :help for commands.\n", fields[0])
	}
	return false
}
