// Package main is the entry point for the Meridian admin CLI.
// This tool inspects and changes users, products and reports directly against the configured store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/prn-tf/meridian/internal/app"
	"github.com/prn-tf/meridian/internal/config"
	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/logging"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var errUsage = errors.New("invalid usage")

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Meridian Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "help", "-h", "--help":
		printUsage()
		return

	case "users", "products", "report":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err := run(command, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr)
			printUsage()
		}
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: %s needs a subcommand", errUsage, command)
	}
	sub, args := args[0], args[1:]

	fs := pflag.NewFlagSet(command+" "+sub, pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", os.Getenv("MERIDIAN_CONFIG"), "path to the configuration file")
	limit := fs.Int("limit", repository.DefaultPageSize, "page size for list commands")
	offset := fs.Int("offset", 0, "page offset for list commands")
	reason := fs.String("reason", "", "reason recorded with a status change")
	by := fs.String("by", "admin-cli", "actor recorded with a change")
	threshold := fs.Int("threshold", -1, "low stock threshold; negative uses each product's own")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	// The CLI writes results to stdout, so keep logs out of the way.
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "console"
	cfg.Logging.Level = "warn"
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out := os.Stdout
	rest := fs.Args()

	switch command + " " + sub {
	case "users list":
		res, err := a.Users.SearchUsers(ctx, repository.UserSearchCriteria{Limit: *limit, Offset: *offset})
		if err != nil {
			return err
		}
		printUsers(out, res.Users)
		fmt.Fprintf(out, "\npage %d of %d (%d users)\n", res.Page.Page, res.TotalPages, res.Total)

	case "users show":
		if len(rest) != 1 {
			return fmt.Errorf("%w: users show <id>", errUsage)
		}
		u, err := a.Users.GetUserByID(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(out, u)

	case "users stats":
		stats, err := a.Users.GetUserStatistics(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, stats)

	case "users bulk-status":
		if len(rest) < 2 {
			return fmt.Errorf("%w: users bulk-status <state> <id>...", errUsage)
		}
		report, err := a.Users.BulkChangeUserStatus(ctx, service.BulkChangeUserStatusRequest{
			IDs:       rest[1:],
			State:     domain.UserState(rest[0]),
			Reason:    *reason,
			ChangedBy: *by,
		})
		if err != nil {
			return err
		}
		printBatch(out, report)

	case "users bulk-role":
		if len(rest) < 2 {
			return fmt.Errorf("%w: users bulk-role <role> <id>...", errUsage)
		}
		report, err := a.Users.BulkChangeUserRole(ctx, service.BulkChangeUserRoleRequest{
			IDs:       rest[1:],
			Role:      domain.Role(rest[0]),
			Reason:    *reason,
			ChangedBy: *by,
		})
		if err != nil {
			return err
		}
		printBatch(out, report)

	case "products list":
		res, err := a.Products.SearchProducts(ctx, repository.ProductSearchCriteria{Limit: *limit, Offset: *offset})
		if err != nil {
			return err
		}
		printProducts(out, res.Products)
		fmt.Fprintf(out, "\npage %d of %d (%d products)\n", res.Page.Page, res.TotalPages, res.Total)

	case "products stats":
		stats, err := a.Products.GetProductStatistics(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, stats)

	case "products low-stock":
		var t *int
		if *threshold >= 0 {
			t = threshold
		}
		products, err := a.Products.GetLowStockProducts(ctx, t)
		if err != nil {
			return err
		}
		printProducts(out, products)

	case "report publish":
		if a.Reports == nil {
			return errors.New("reports are disabled; set reports.enabled")
		}
		key, err := a.Reports.Publish(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Published %s\n", key)

	default:
		return fmt.Errorf("%w: unknown subcommand %q", errUsage, command+" "+sub)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsers(w io.Writer, users []*domain.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tSTATE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID(), u.Email(), u.Profile().FullName(), u.Role(), u.Status().State())
	}
	_ = tw.Flush()
}

func printProducts(w io.Writer, products []*domain.Product) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tAVAILABLE\tTAGS")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID(), p.Name(), p.Category().ID, p.Price().Format(), p.Inventory().Available(), strings.Join(p.Tags(), ","))
	}
	_ = tw.Flush()
}

func printBatch(w io.Writer, report *service.BatchReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRESULT")
	for _, item := range report.Items {
		result := "ok"
		if !item.Succeeded {
			result = item.Error
		}
		fmt.Fprintf(tw, "%s\t%s\n", item.ID, result)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d requested, %d succeeded, %d failed\n", report.Requested, report.Succeeded, report.Failed)
}

func printUsage() {
	fmt.Println(`Meridian Admin CLI

Usage:
  meridian-admin <command> <subcommand> [arguments] [flags]

Commands:
  users list                          List users (--limit, --offset)
  users show <id>                     Show one user as JSON
  users stats                         Show user statistics
  users bulk-status <state> <id>...   Change the status of several users (--reason, --by)
  users bulk-role <role> <id>...      Change the role of several users (--reason, --by)
  products list                       List products (--limit, --offset)
  products stats                      Show product statistics
  products low-stock                  List products at or below their threshold (--threshold)
  report publish                      Publish a statistics report now
  version                             Print version information
  help                                Show this help message

Flags:
  -c, --config    Path to the configuration file (default $MERIDIAN_CONFIG)

Examples:
  meridian-admin users list --limit 20
  meridian-admin users bulk-status suspended 4 7 --reason "chargeback"
  meridian-admin products low-stock --threshold 80
  meridian-admin report publish`)
}
