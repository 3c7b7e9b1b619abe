// Command expensetrack records personal expenses in a local file and reports
// totals over them.
//
// Usage:
//
//	expensetrack add -amount 12.50 -category food [-date 2024-03-01] [-description lunch]
//	expensetrack list [-category food] [-from 2024-03-01] [-to 2024-03-31]
//	expensetrack edit -id 1 [-amount ...] [-date ...] [-category ...] [-description ...]
//	expensetrack delete -id 1
//	expensetrack total [-category food] [-from ...] [-to ...]
//	expensetrack summary [-category food] [-from ...] [-to ...]
//	expensetrack categories [add NAME | remove NAME]
//
// Configuration comes from the environment (and an optional .env file):
// EXPENSES_BACKEND, EXPENSES_FILE, EXPENSES_SQLITE_PATH,
// EXPENSES_SQLITE_BUSY_RETRIES, EXPENSES_CATEGORIES_FILE, LOG_LEVEL and
// LOG_FORMAT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"expensetrack/internal/categories"
	"expensetrack/internal/cli"
	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
)

// Exit codes.
const (
	exitOK = iota
	exitStorage
	exitUsage
	exitValidation
	exitNotFound
	exitCorrupt
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := cli.InterruptContext()
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cli.LoadEnvFile()

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(stderr, "expensetrack: %v\n", err)
		return exitUsage
	}
	logger := cli.SetupLogger(cfg)

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "expensetrack: unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	app := &app{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}
	defer app.close()

	if err := cmd(ctx, app, args[1:]); err != nil {
		fmt.Fprintf(stderr, "expensetrack: %s\n", describe(err))
		applog.WithComponent(logger, applog.ComponentApp).DebugContext(ctx, "Command failed",
			applog.FieldOperation, args[0],
			applog.FieldError, err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps an error to the process exit status by kind.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, core.ErrValidation):
		return exitValidation
	case errors.Is(err, core.ErrNotFound), errors.Is(err, categories.ErrUnknownCategory):
		return exitNotFound
	case errors.Is(err, core.ErrCorruptData):
		return exitCorrupt
	case errors.Is(err, categories.ErrCategoryInUse):
		return exitValidation
	default:
		return exitStorage
	}
}

// describe renders err for the user, prefixed by its kind.
func describe(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return "invalid input: " + err.Error()
	case errors.Is(err, core.ErrCorruptData):
		return "storage is damaged and was left untouched: " + err.Error()
	case errors.Is(err, core.ErrStorageIO):
		return "storage unavailable: " + err.Error()
	default:
		return err.Error()
	}
}

const usage = `Usage: expensetrack <command> [flags]

Commands:
  add         record an expense (-amount, -category, -date, -description)
  list        list expenses (-category, -from, -to)
  edit        change fields of an expense (-id and any of -amount, -date, -category, -description)
  delete      remove an expense (-id)
  total       sum of amounts (-category, -from, -to)
  summary     totals per category (-category, -from, -to)
  categories  list categories, or: categories add NAME | categories remove NAME
`
