// Command tmtokenize tokenizes a file with a TextMate grammar and prints the
// tokens of each line.
//
// Usage:
//
//	tmtokenize [-grammar css.tmLanguage.yaml] [-json] [-v] [file]
//
// Without -grammar the built-in CSS grammar is used. Without a file argument
// the text is read from standard input.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"go.uber.org/zap"

	"github.com/agentable/textmate"
	"github.com/agentable/textmate/fixtures"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "tmtokenize: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tmtokenize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	grammarPath := fs.String("grammar", "", "grammar file (.json, .yaml or .yml); defaults to the built-in CSS grammar")
	asJSON := fs.Bool("json", false, "print tokens as JSON")
	verbose := fs.Bool("v", false, "log compilation and tokenizer warnings to stderr")
	lineTimeout := fs.Duration("line-timeout", textmate.DefaultLineTimeout, "time budget per line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	opts := []textmate.Option{textmate.WithLogger(logger), textmate.WithLineTimeout(*lineTimeout)}
	var g *textmate.Grammar
	var err error
	if *grammarPath == "" {
		g, err = fixtures.CSS(opts...)
	} else {
		g, err = textmate.LoadFile(*grammarPath, opts...)
	}
	if err != nil {
		return err
	}

	in := stdin
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	src, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	start := time.Now()
	lines := g.TokenizeLines(string(src))
	logger.Debug("tokenized",
		zap.Int("lines", len(lines)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if *asJSON {
		return json.MarshalWrite(stdout, lines, jsontext.WithIndent("  "))
	}
	return printText(stdout, lines)
}

// printText writes one block per line: the line number, then one indented
// row per token.
func printText(w io.Writer, lines [][]textmate.Token) error {
	for i, line := range lines {
		if _, err := fmt.Fprintf(w, "%d:\n", i+1); err != nil {
			return err
		}
		for _, tok := range line {
			if _, err := fmt.Fprintf(w, "  %s\n", tok); err != nil {
				return err
			}
		}
	}
	return nil
}
