package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"expensetrack/internal/aggregate"
	"expensetrack/internal/cli"
	"expensetrack/internal/config"
	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
	"expensetrack/internal/services"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"add":        runAdd,
	"list":       runList,
	"edit":       runEdit,
	"delete":     runDelete,
	"total":      runTotal,
	"summary":    runSummary,
	"categories": runCategories,
}

// app carries what a single invocation needs. The store is opened lazily
// so that commands which do not touch expenses never read storage.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	store  *services.ExpenseStore
}

func (a *app) expenses(ctx context.Context) (*services.ExpenseStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := cli.OpenStore(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close store", applog.FieldError, err)
	}
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

// filterFlags registers -category, -from and -to and returns a builder for
// the matching predicates.
func filterFlags(fs *flag.FlagSet) func() ([]aggregate.Predicate, error) {
	category := fs.String("category", "", "only this category")
	from := fs.String("from", "", "first date, inclusive (YYYY-MM-DD)")
	to := fs.String("to", "", "last date, inclusive (YYYY-MM-DD)")

	return func() ([]aggregate.Predicate, error) {
		var preds []aggregate.Predicate
		if *category != "" {
			preds = append(preds, aggregate.ByCategory(*category))
		}
		if *from != "" || *to != "" {
			var lo, hi core.Date
			var err error
			if *from != "" {
				if lo, err = core.ParseDate(*from); err != nil {
					return nil, err
				}
			}
			if *to != "" {
				if hi, err = core.ParseDate(*to); err != nil {
					return nil, err
				}
			}
			if !lo.IsZero() && !hi.IsZero() && hi.Before(lo) {
				return nil, &core.ValidationError{Field: "to", Value: *to, Err: fmt.Errorf("before -from %s", *from)}
			}
			preds = append(preds, aggregate.Between(lo, hi))
		}
		return preds, nil
	}
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("add")
	amount := fs.String("amount", "", "amount, e.g. 12.50 (required)")
	date := fs.String("date", time.Now().Format(core.DateLayout), "date (YYYY-MM-DD)")
	category := fs.String("category", "", "category (required)")
	description := fs.String("description", "", "optional note")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	store, err := a.expenses(ctx)
	if err != nil {
		return err
	}
	e, err := store.Add(ctx, core.ExpenseInput{
		Amount:      *amount,
		Date:        *date,
		Category:    *category,
		Description: *description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "added expense %d: %s %s %s\n", e.ID, e.Amount.Display(), e.Date, e.Category)
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("list")
	filters := filterFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	preds, err := filters()
	if err != nil {
		return err
	}

	store, err := a.expenses(ctx)
	if err != nil {
		return err
	}
	records := aggregate.Filter(store.List(), preds...)
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "no expenses")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION")
	for _, e := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Category, e.Amount.Display(), e.Description)
	}
	return tw.Flush()
}

func runEdit(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("edit")
	id := fs.Int64("id", 0, "id of the expense (required)")
	amount := fs.String("amount", "", "new amount")
	date := fs.String("date", "", "new date (YYYY-MM-DD)")
	category := fs.String("category", "", "new category")
	description := fs.String("description", "", "new description")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("%w: edit requires -id", errUsage)
	}

	// Only flags given on the command line become part of the patch, so an
	// explicit -description "" clears the description.
	var patch core.ExpensePatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "amount":
			patch.Amount = amount
		case "date":
			patch.Date = date
		case "category":
			patch.Category = category
		case "description":
			patch.Description = description
		}
	})
	if patch.IsEmpty() {
		return fmt.Errorf("%w: nothing to change", errUsage)
	}

	store, err := a.expenses(ctx)
	if err != nil {
		return err
	}
	e, err := store.Update(ctx, *id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "updated expense %d: %s %s %s\n", e.ID, e.Amount.Display(), e.Date, e.Category)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("delete")
	id := fs.Int64("id", 0, "id of the expense (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("%w: delete requires -id", errUsage)
	}

	store, err := a.expenses(ctx)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "deleted expense %d\n", *id)
	return nil
}

func runTotal(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("total")
	filters := filterFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	preds, err := filters()
	if err != nil {
		return err
	}

	store, err := a.expenses(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, aggregate.Total(store.List(), preds...).Display())
	return nil
}

func runSummary(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("summary")
	filters := filterFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	preds, err := filters()
	if err != nil {
		return err
	}

	store, err := a.expenses(ctx)
	if err != nil {
		return err
	}
	s := aggregate.Summarize(store.List(), preds...)

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCOUNT\tAMOUNT\tSHARE")
	for _, ca := range s.ByCategory {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s%%\n", ca.Name, ca.Count, ca.Amount.Display(), ca.Share.StringFixed(1))
	}
	fmt.Fprintf(tw, "total\t%d\t%s\t\n", s.Count, s.Total.Display())
	return tw.Flush()
}

func runCategories(ctx context.Context, a *app, args []string) error {
	catalog, err := cli.OpenCategories(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		for _, name := range catalog.List() {
			fmt.Fprintln(a.stdout, name)
		}
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: categories [add NAME | remove NAME]", errUsage)
	}

	switch args[0] {
	case "add":
		added, err := catalog.Add(ctx, args[1])
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(a.stdout, "added category %s\n", core.NormalizeCategory(args[1]))
		} else {
			fmt.Fprintf(a.stdout, "category %s already exists\n", core.NormalizeCategory(args[1]))
		}
		return nil
	case "remove":
		store, err := a.expenses(ctx)
		if err != nil {
			return err
		}
		inUse := func(name string) bool {
			return len(aggregate.Filter(store.List(), aggregate.ByCategory(name))) > 0
		}
		if err := catalog.Remove(ctx, args[1], inUse); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "removed category %s\n", core.NormalizeCategory(args[1]))
		return nil
	default:
		return fmt.Errorf("%w: unknown categories action %q", errUsage, args[0])
	}
}
