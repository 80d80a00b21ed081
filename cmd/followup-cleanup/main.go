// Command followup-cleanup deletes sent, cancelled and failed followups
// older than a retention window. It prints what would be removed and asks
// for confirmation unless --force or --dry-run is given.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/contact-app/followup/internal/app"
	"github.com/contact-app/followup/internal/archive"
	"github.com/contact-app/followup/internal/config"
	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/repository/postgres"
	"github.com/contact-app/followup/internal/service/followup"
)

type options struct {
	days   int
	dryRun bool
	force  bool
}

// sweeper is satisfied by *followup.Sweeper.
type sweeper interface {
	Preview(ctx context.Context, days int, now time.Time) (followup.Preview, error)
	Run(ctx context.Context, opts followup.SweepOptions, now time.Time) (followup.SweepResult, error)
}

func main() {
	var opts options
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.IntVar(&opts.days, "days", followup.DefaultRetentionDays, "delete terminal followups older than this many days")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "only print what would be deleted")
	flag.BoolVar(&opts.force, "force", false, "skip the confirmation prompt")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := app.OpenDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var archiver followup.Archiver
	if cfg.Archive.Bucket != "" {
		a, err := archive.NewS3Archiver(ctx, archive.S3Config{
			Bucket:   cfg.Archive.Bucket,
			Prefix:   cfg.Archive.Prefix,
			Region:   cfg.Archive.Region,
			Compress: cfg.Archive.Compress,
		})
		if err != nil {
			log.Fatalf("Failed to init archive: %v", err)
		}
		archiver = a
	}

	s := followup.NewSweeper(postgres.NewFollowupRepo(db), archiver)
	if err := run(ctx, s, opts, time.Now().UTC(), os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, s sweeper, opts options, now time.Time, in io.Reader, out io.Writer) error {
	p, err := s.Preview(ctx, opts.days, now)
	if err != nil {
		return err
	}
	printPreview(out, p)

	if p.Total == 0 {
		fmt.Fprintln(out, "Nothing to delete.")
		return nil
	}
	if opts.dryRun {
		fmt.Fprintln(out, "Dry run: nothing deleted.")
		return nil
	}
	if !opts.force && !confirm(in, out, p.Total) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	res, err := s.Run(ctx, followup.SweepOptions{Days: opts.days}, now)
	if err != nil {
		return err
	}
	if res.ArchiveKey != "" {
		fmt.Fprintf(out, "Archived %d followup(s) to %s\n", res.Archived, res.ArchiveKey)
	}
	fmt.Fprintf(out, "Deleted %d followup(s).\n", res.Deleted)
	return nil
}

func printPreview(out io.Writer, p followup.Preview) {
	fmt.Fprintf(out, "Followups older than %d day(s) (before %s):\n", p.Days, p.Cutoff.Format(time.RFC3339))
	for _, st := range domain.TerminalFollowupStatuses {
		fmt.Fprintf(out, "  %-10s %d\n", st, p.ByStatus[st])
	}
	fmt.Fprintf(out, "  %-10s %d\n", "total", p.Total)
}

func confirm(in io.Reader, out io.Writer, total int) bool {
	fmt.Fprintf(out, "Delete %d followup(s)? [y/N]: ", total)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
