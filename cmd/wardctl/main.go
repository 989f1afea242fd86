package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Jeremiassm/controlh-app/internal/config"
	"github.com/Jeremiassm/controlh-app/internal/db"
	"github.com/Jeremiassm/controlh-app/pkg/tracker"
	"github.com/Jeremiassm/controlh-app/pkg/ward"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		fatal("config: %v", err)
	}
	store, err := db.Open(ctx, cfg)
	if err != nil {
		fatal("open %s store: %v", cfg.Driver, err)
	}
	defer store.Close()

	svc := tracker.New(store,
		tracker.WithLocation(cfg.Location),
		tracker.WithCategories(ward.NewCategorySet(cfg.Categories...)),
	)

	switch os.Args[1] {
	case "patient":
		handlePatient(ctx, svc, os.Args[2:])
	case "task":
		handleTask(ctx, svc, os.Args[2:])
	case "categories":
		for _, c := range svc.Categories() {
			fmt.Println(c)
		}
	case "status":
		st, err := svc.Stats(ctx)
		if err != nil {
			fatal("status: %v", err)
		}
		fmt.Printf("Patients:   %d\n", st.Patients)
		fmt.Printf("Tasks:      %d\n", st.Tasks)
		fmt.Printf("Open tasks: %d\n", st.OpenTasks)
	case "init":
		// db.Open already applied the schema.
		fmt.Printf("schema ready (%s)\n", cfg.Driver)
	default:
		usage()
		os.Exit(1)
	}
}

func handlePatient(ctx context.Context, svc *tracker.Service, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wardctl patient <create|list|get|update|delete> [--format=short for list]")
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		flags := parseFlags(args[1:])
		p, err := svc.CreatePatient(ctx, flags["name"], optFlag(flags, "room"))
		if err != nil {
			fatal("create patient: %v", err)
		}
		printJSON(p)

	case "list":
		flags := parseFlags(args[1:])
		patients, err := svc.ListPatients(ctx)
		if err != nil {
			fatal("list patients: %v", err)
		}
		if flags["format"] == "short" {
			for _, p := range patients {
				fmt.Printf("%-8s  %-30s  %s\n", truncStr(p.ID, 8), truncStr(p.Name, 30), deref(p.Room, "-"))
			}
		} else {
			printJSON(patients)
		}

	case "get":
		if len(args) < 2 {
			fatal("Usage: wardctl patient get <id>")
		}
		p, err := svc.GetPatient(ctx, args[1])
		if err != nil {
			fatal("get patient: %v", err)
		}
		printJSON(p)

	case "update":
		if len(args) < 2 {
			fatal("Usage: wardctl patient update <id> --name=... [--room=...]")
		}
		flags := parseFlags(args[2:])
		p, err := svc.UpdatePatient(ctx, args[1], flags["name"], optFlag(flags, "room"))
		if err != nil {
			fatal("update patient: %v", err)
		}
		printJSON(p)

	case "delete":
		if len(args) < 2 {
			fatal("Usage: wardctl patient delete <id>")
		}
		if err := svc.DeletePatient(ctx, args[1]); err != nil {
			fatal("delete patient: %v", err)
		}
		fmt.Println("deleted", args[1])

	default:
		fatal("unknown patient command: %s", args[0])
	}
}

func handleTask(ctx context.Context, svc *tracker.Service, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wardctl task <create|list|get|done|open|pending|day|category> [--format=short for lists]")
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		flags := parseFlags(args[1:])
		t, err := svc.CreateTask(ctx, flags["description"], flags["category"], optFlag(flags, "patient"))
		if err != nil {
			fatal("create task: %v", err)
		}
		printJSON(t)

	case "list":
		tasks, err := svc.ListAll(ctx)
		if err != nil {
			fatal("list tasks: %v", err)
		}
		printTasks(tasks, svc.Location(), parseFlags(args[1:]))

	case "get":
		if len(args) < 2 {
			fatal("Usage: wardctl task get <id>")
		}
		t, err := svc.GetTask(ctx, args[1])
		if err != nil {
			fatal("get task: %v", err)
		}
		printJSON(t)

	case "done", "open":
		if len(args) < 2 {
			fatal("Usage: wardctl task %s <id>", args[0])
		}
		t, err := svc.SetStatus(ctx, args[1], args[0])
		if err != nil {
			fatal("set task status: %v", err)
		}
		printJSON(t)

	case "pending":
		tasks, err := svc.ListPending(ctx)
		if err != nil {
			fatal("pending tasks: %v", err)
		}
		printTasks(tasks, svc.Location(), parseFlags(args[1:]))

	case "day":
		if len(args) < 2 {
			fatal("Usage: wardctl task day <YYYY-MM-DD>")
		}
		day, err := svc.ParseDay(args[1])
		if err != nil {
			fatal("%v", err)
		}
		tasks, err := svc.ListByDay(ctx, day)
		if err != nil {
			fatal("tasks by day: %v", err)
		}
		printTasks(tasks, svc.Location(), parseFlags(args[2:]))

	case "category":
		if len(args) < 2 {
			fatal("Usage: wardctl task category <name>")
		}
		tasks, err := svc.ListByCategory(ctx, args[1])
		if err != nil {
			fatal("tasks by category: %v", err)
		}
		printTasks(tasks, svc.Location(), parseFlags(args[2:]))

	default:
		fatal("unknown task command: %s", args[0])
	}
}

func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if idx := strings.Index(arg, "="); idx >= 0 {
			flags[arg[:idx]] = arg[idx+1:]
		} else {
			flags[arg] = ""
		}
	}
	return flags
}

// optFlag returns nil when the flag is absent or empty.
func optFlag(flags map[string]string, key string) *string {
	if v, ok := flags[key]; ok && v != "" {
		return &v
	}
	return nil
}

func deref(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func printTasks(tasks []ward.TaskView, loc *time.Location, flags map[string]string) {
	if flags["format"] != "short" {
		printJSON(tasks)
		return
	}
	for _, t := range tasks {
		fmt.Printf("%-8s  %-16s  %-5s  %-13s  %-20s  %s\n",
			truncStr(t.ID, 8), t.CreatedAt.In(loc).Format("2006-01-02 15:04"), t.Status,
			t.Category, truncStr(deref(t.PatientName, "-"), 20), truncStr(t.Description, 50))
	}
}

func truncStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "wardctl: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: wardctl <command>

Commands:
  patient     Patient operations (create, list, get, update, delete)
  task        Task operations (create, list, get, done, open, pending, day, category)
  categories  List accepted task categories
  status      Show store summary
  init        Initialize database tables`)
}
