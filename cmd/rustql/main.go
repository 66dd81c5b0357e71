// Command rustql is the interactive shell for RustQL (spec.md §6,
// SPEC_FULL.md §4.7): it loads config, opens the JSON-backed catalog,
// and reads statements from stdin one per line. Persistence happens
// inside internal/session, statement by statement.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"rustql/internal/config"
	"rustql/internal/session"
	"rustql/internal/storage"
	"rustql/internal/types"
)

type options struct {
	DB     string `short:"d" long:"db" description:"Path to the JSON-backed database file" value-name:"path"`
	Config string `short:"c" long:"config" description:"Path to a YAML config file" value-name:"path" default:"rustql.yaml"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, input io.Reader, output, errOutput io.Writer) int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options]"
	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		return 2
	}

	logger := slog.New(slog.NewTextHandler(errOutput, nil))

	cfg, err := config.Load(opts.Config)
	if err != nil {
		logger.Error("loading config", "path", opts.Config, "error", err)
		return 1
	}

	dbPath := cfg.DatabasePath
	if opts.DB != "" {
		dbPath = opts.DB
	}

	cat, err := storage.Load(dbPath)
	if err != nil {
		logger.Error("loading database", "path", dbPath, "error", err)
		return 1
	}

	sess := session.New(cat, dbPath)
	sawError := false

	fmt.Fprintln(output, "RustQL")
	fmt.Fprintln(output, "Enter statements terminated by \";\" or a newline. \".exit\" or \".quit\" to leave.")

	scanner := bufio.NewScanner(input)
	for {
		fmt.Fprint(output, "rustql> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ".exit" || line == ".quit" {
			break
		}
		line = strings.TrimSuffix(line, ";")

		result, err := sess.Execute(line)
		if err != nil {
			sawError = true
			if cfg.LogStatements {
				logger.Error("statement failed", "sql", line, "error", err)
			}
			fmt.Fprintf(errOutput, "Error: %v\n", err)
			continue
		}
		if cfg.LogStatements {
			logger.Info("statement ok", "sql", line)
		}
		printResult(output, result)
	}

	if sawError {
		return 1
	}
	return 0
}

func printResult(w io.Writer, res *session.Result) {
	if res == nil {
		return
	}
	if len(res.Columns) == 0 {
		if res.Message != "" {
			fmt.Fprintln(w, res.Message)
		}
		if res.Affected > 0 {
			fmt.Fprintf(w, "rows_affected: %d\n", res.Affected)
		}
		return
	}

	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = len(c)
	}
	rendered := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		rendered[i] = make([]string, len(row))
		for j, v := range row {
			s := formatValue(v)
			rendered[i][j] = s
			if len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	printSeparator(w, widths)
	printRow(w, res.Columns, widths)
	printSeparator(w, widths)
	for _, row := range rendered {
		printRow(w, row, widths)
	}
	printSeparator(w, widths)
	fmt.Fprintf(w, "%d row(s)\n", len(res.Rows))
}

func printSeparator(w io.Writer, widths []int) {
	fmt.Fprint(w, "+")
	for _, width := range widths {
		fmt.Fprint(w, strings.Repeat("-", width+2))
		fmt.Fprint(w, "+")
	}
	fmt.Fprintln(w)
}

func printRow(w io.Writer, values []string, widths []int) {
	fmt.Fprint(w, "|")
	for i, v := range values {
		fmt.Fprintf(w, " %-*s |", widths[i], v)
	}
	fmt.Fprintln(w)
}

func formatValue(v types.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}
