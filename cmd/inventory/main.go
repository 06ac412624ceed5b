package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go-inventory-offline/internal/app"
	"go-inventory-offline/internal/config"
	"go-inventory-offline/internal/model"
	"go-inventory-offline/internal/notify"
	"go-inventory-offline/internal/repository"
)

const usage = `usage: inventory <command> [flags]

commands:
  init                     migrate and seed the database, then exit
  summary   [-category C]  aggregated stock per item and size
  low-stock                items at or below the low-stock threshold
  orders    [-search S] [-category C] [-from YYYY-MM-DD] [-to YYYY-MM-DD]
  history   [-limit N] [-category C]
  export                   write today's backup to the configured store
  import    -name FILE -yes  replace all data with a stored backup
  backups                  list stored backups
  metrics   [-out FILE]    write counters in the Prometheus text format
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// 1. Load Config
	cfg := config.Load()

	// 2. Open and initialize
	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := a.Initialize(); err != nil {
		a.Close()
		log.Fatalf("❌ %v", err)
	}

	// 3. Surface notifications on stderr
	a.Hub.Subscribe(func(ev notify.Event) error {
		log.Printf("[Notify] %s", ev.Message)
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, a, os.Args[1], os.Args[2:])
	stop()
	a.Close()
	if err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	switch cmd {
	case "init":
		log.Println("✅ Database initialized")
		return nil
	case "summary":
		return summary(a, args)
	case "low-stock":
		return lowStock(a)
	case "orders":
		return orders(a, args)
	case "history":
		return history(a, args)
	case "export":
		return export(ctx, a)
	case "import":
		return restore(ctx, a, args)
	case "backups":
		return listBackups(ctx, a)
	case "metrics":
		return writeMetrics(a, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func summary(a *app.App, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	category := fs.String("category", "", "limit to one category")
	fs.Parse(args)

	rows, err := a.Dashboard.Inventory(*category)
	if err != nil {
		return err
	}
	w := newTable()
	fmt.Fprintln(w, "CATEGORY\tITEM\tSIZE\tTOTAL\t")
	for _, r := range rows {
		mark := ""
		if r.IsLow() {
			mark = "LOW"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Category, r.Name, model.SizeLabel(r.Size), r.Total, mark)
	}
	return w.Flush()
}

func lowStock(a *app.App) error {
	rows, err := a.Dashboard.LowStock()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No items at or below", model.LowStockThreshold)
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "CATEGORY\tITEM\tTOTAL")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\n", r.Category, model.DisplayName(r.Name, r.Size), r.Total)
	}
	return w.Flush()
}

func orders(a *app.App, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	search := fs.String("search", "", "student name or class contains")
	category := fs.String("category", "", "only orders with items in this category")
	from := fs.String("from", "", "first day, YYYY-MM-DD")
	to := fs.String("to", "", "last day, YYYY-MM-DD")
	fs.Parse(args)

	filter := repository.OrderFilter{Search: *search, Category: *category}
	if *from != "" {
		day, err := time.Parse(time.DateOnly, *from)
		if err != nil {
			return fmt.Errorf("invalid -from: %w", err)
		}
		filter.From = day
	}
	if *to != "" {
		day, err := time.Parse(time.DateOnly, *to)
		if err != nil {
			return fmt.Errorf("invalid -to: %w", err)
		}
		filter.To = day.Add(24*time.Hour - time.Nanosecond)
	}

	list, err := a.Dashboard.Orders(filter)
	if err != nil {
		return err
	}
	w := newTable()
	fmt.Fprintln(w, "DATE\tSTUDENT\tCLASS\tITEM\tQTY")
	for _, o := range list {
		for _, item := range o.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				o.Date.Local().Format("2006-01-02 15:04"), o.StudentName, o.StudentClass,
				model.DisplayName(item.ItemName, item.Size), item.Quantity)
		}
	}
	return w.Flush()
}

func history(a *app.App, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 50, "number of entries")
	category := fs.String("category", "", "limit to one category")
	fs.Parse(args)

	logs, err := a.Dashboard.History(*limit, *category)
	if err != nil {
		return err
	}
	w := newTable()
	fmt.Fprintln(w, "DATE\tACTION\tCATEGORY\tITEM\tSIZE\tQTY")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%+d\n",
			l.Date.Local().Format("2006-01-02 15:04"), l.Action, l.CategoryName, l.ItemName, l.Size, l.Quantity)
	}
	return w.Flush()
}

func export(ctx context.Context, a *app.App) error {
	store, err := a.BackupStore(ctx)
	if err != nil {
		return err
	}
	name, err := a.Backup.ExportTo(ctx, store)
	if err != nil {
		return err
	}
	log.Printf("✅ Backup written: %s", name)
	return nil
}

func restore(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	name := fs.String("name", "", "backup file name")
	yes := fs.Bool("yes", false, "confirm that all current data will be replaced")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("import: -name is required")
	}
	store, err := a.BackupStore(ctx)
	if err != nil {
		return err
	}
	if err := a.Backup.ImportFrom(ctx, store, *name, *yes); err != nil {
		return err
	}
	log.Printf("✅ Restored from %s", *name)
	return nil
}

func listBackups(ctx context.Context, a *app.App) error {
	store, err := a.BackupStore(ctx)
	if err != nil {
		return err
	}
	names, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func writeMetrics(a *app.App, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	out := fs.String("out", "", "write to this .prom file instead of stdout")
	fs.Parse(args)

	if *out == "" {
		return a.WriteMetrics(os.Stdout)
	}
	if err := a.WriteMetricsFile(*out); err != nil {
		return err
	}
	log.Printf("✅ Metrics written: %s", *out)
	return nil
}
