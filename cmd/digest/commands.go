package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"github.com/bobmcallan/digest/internal/app"
	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/server"
	"github.com/bobmcallan/digest/internal/services/report"
)

// configFlag is shared by every command that needs the App
type configFlag struct {
	path string
}

func (c *configFlag) register(f *flag.FlagSet) {
	f.StringVar(&c.path, "config", "", "path to digest.toml (defaults to DIGEST_CONFIG, then digest.toml beside the binary)")
}

func (c *configFlag) newApp() (*app.App, subcommands.ExitStatus) {
	a, err := app.NewApp(c.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, subcommands.ExitUsageError
	}
	return a, subcommands.ExitSuccess
}

func printMarkdown(md string) {
	out, err := report.RenderMarkdown(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

type runCmd struct {
	config configFlag
	print  bool
	json   bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "build today's digest and deliver it" }
func (*runCmd) Usage() string {
	return `digest run [-config <file>] [-print] [-json]

  Loads the portfolio, prices it, scans the market, renders the HTML report
  and delivers it by email and to the output directory.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	c.config.register(f)
	f.BoolVar(&c.print, "print", false, "also print the digest to the terminal")
	f.BoolVar(&c.json, "json", false, "print the report as JSON instead of markdown")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := c.config.newApp()
	if a == nil {
		return status
	}
	defer a.Close()

	result, err := a.RunOnce(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	switch {
	case c.json:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	case c.print:
		printMarkdown(report.FormatDigest(result.Report))
	}

	if result.Message == nil {
		fmt.Fprintln(os.Stderr, "Report is empty; nothing was delivered.")
		return subcommands.ExitSuccess
	}
	for _, d := range result.Delivered {
		fmt.Fprintf(os.Stderr, "Delivered: %s\n", d)
	}
	return subcommands.ExitSuccess
}

type holdingsCmd struct {
	config configFlag
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "show the parsed portfolio table" }
func (*holdingsCmd) Usage() string {
	return `digest holdings [-config <file>]

  Parses the configured portfolio file and prints the holdings it yields,
  including rows that were dropped and why.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	c.config.register(f)
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := c.config.newApp()
	if a == nil {
		return status
	}
	defer a.Close()

	res, err := a.Loader.LoadFile(a.Config.Portfolio.File, a.Config.Portfolio.Sheet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.FormatHoldings(res))
	return subcommands.ExitSuccess
}

type reportsCmd struct {
	config configFlag
	limit  int
}

func (*reportsCmd) Name() string     { return "reports" }
func (*reportsCmd) Synopsis() string { return "list archived reports" }
func (*reportsCmd) Usage() string {
	return `digest reports [-config <file>] [-n <count>]

  Lists the most recent reports kept in the report archive.
  Requires archive.backend to be configured.
`
}

func (c *reportsCmd) SetFlags(f *flag.FlagSet) {
	c.config.register(f)
	f.IntVar(&c.limit, "n", 10, "number of reports to list")
}

func (c *reportsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := c.config.newApp()
	if a == nil {
		return status
	}
	defer a.Close()

	if a.Archive == nil {
		fmt.Fprintln(os.Stderr, "Error: report archive is not configured (set archive.backend)")
		return subcommands.ExitFailure
	}
	reports, err := a.Archive.List(ctx, c.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.FormatArchive(reports))
	return subcommands.ExitSuccess
}

type scanCmd struct {
	config    configFlag
	universes string
	topN      int
}

func (*scanCmd) Name() string     { return "scan" }
func (*scanCmd) Synopsis() string { return "list the day's largest market movers" }
func (*scanCmd) Usage() string {
	return `digest scan [-config <file>] [-universe <spec>] [-n <count>]

  Runs the market scanner alone. Universe specs are eodhd:<INDEX>,
  file:<path> or list:<SYM,SYM>.
`
}

func (c *scanCmd) SetFlags(f *flag.FlagSet) {
	c.config.register(f)
	f.StringVar(&c.universes, "universe", "", "scan this universe spec instead of the configured ones")
	f.IntVar(&c.topN, "n", 0, "movers per side (defaults to scanner.top_n)")
}

func (c *scanCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := c.config.newApp()
	if a == nil {
		return status
	}
	defer a.Close()

	opts := report.ConfigFromCommon(a.Config).Scan
	if c.universes != "" {
		opts.Universes = []string{c.universes}
	}
	if c.topN > 0 {
		opts.TopN = c.topN
	}

	res, err := a.ScannerService.Scan(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.FormatScan(res))
	return subcommands.ExitSuccess
}

type serveCmd struct {
	config configFlag
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the digest on a schedule and serve the latest report" }
func (*serveCmd) Usage() string {
	return `digest serve [-config <file>]

  Starts the cron scheduler and the HTTP server (health, metrics, latest
  report, holding charts). Stops on SIGINT or SIGTERM.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	c.config.register(f)
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, status := c.config.newApp()
	if a == nil {
		return status
	}

	common.PrintBanner(os.Stdout, a.Config, a.Logger)

	if err := a.StartScheduler(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.Close()
		return subcommands.ExitUsageError
	}

	srv := server.NewServer(a)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("url", "http://"+a.Config.Server.Address()).
		Msg("Server ready")

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	common.PrintShutdownBanner(os.Stdout, a.Logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Close()
	a.Logger.Info().Msg("Server stopped")
	return subcommands.ExitSuccess
}

type versionCmd struct {
	json bool
}

func (*versionCmd) Name() string     { return "version" }
func (*versionCmd) Synopsis() string { return "print build information" }
func (*versionCmd) Usage() string {
	return `digest version [-json]
`
}

func (c *versionCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print as JSON")
}

func (c *versionCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.json {
		data, _ := json.MarshalIndent(common.GetVersionInfo(), "", "  ")
		fmt.Println(string(data))
		return subcommands.ExitSuccess
	}
	fmt.Printf("digest %s\n", common.GetFullVersion())
	return subcommands.ExitSuccess
}
