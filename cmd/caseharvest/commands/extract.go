package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"caseharvest/lib/casestore"
	"caseharvest/lib/configutil"
	"caseharvest/lib/docfetch"
	"caseharvest/lib/restyutil"
	"caseharvest/lib/serviceutil"
	"caseharvest/lib/telemetry"
	"caseharvest/services/extraction"
)

// Config carries the defaults an extract run starts from. Flags
// override whatever the config file says.
type Config struct {
	CaseType   string `json:"case_type"`
	Registry   string `json:"registry"`
	YearFrom   int    `json:"year_from"`
	YearTo     int    `json:"year_to"`
	Workers    int    `json:"workers"`
	Output     string `json:"output"`
	PdfDir     string `json:"pdf_dir"`
	ProgressDB string `json:"progress_db"`
	Headless   bool   `json:"headless"`
}

var extractFlags struct {
	config     string
	caseType   string
	registry   string
	yearFrom   int
	yearTo     int
	workers    int
	output     string
	pdfDir     string
	progressDB string
	headless   bool
	faked      bool
	strict     bool
	debugHTTP  bool
}

func init() {
	extractCmd.Run = runExtract
	f := extractCmd.Flags()
	f.StringVar(&extractFlags.config, "config", "caseharvest.json5", "Config file with run defaults.")
	f.StringVar(&extractFlags.caseType, "case-type", "", "Case type as shown in the search form, e.g. \"C.A.\".")
	f.StringVar(&extractFlags.registry, "registry", "", "Registry as shown in the search form, e.g. \"Islamabad\".")
	f.IntVar(&extractFlags.yearFrom, "year-from", 0, "First institution year to extract.")
	f.IntVar(&extractFlags.yearTo, "year-to", 0, "Last institution year to extract (inclusive).")
	f.IntVar(&extractFlags.workers, "workers", 0, "Concurrent browser sessions.")
	f.StringVar(&extractFlags.output, "output", "", "Result JSON file. Reopened files are resumed.")
	f.StringVar(&extractFlags.pdfDir, "pdf-dir", "", "Download linked documents into this directory.")
	f.StringVar(&extractFlags.progressDB, "progress-db", "", "Sqlite or libsql page checkpoint database.")
	f.BoolVar(&extractFlags.headless, "headless", true, "Run the browser headless.")
	f.BoolVar(&extractFlags.faked, "faked", false, "Run against a synthetic form instead of a browser.")
	f.BoolVar(&extractFlags.strict, "strict-recovery", false, "Fail instead of restarting when the output file is corrupted.")
	f.BoolVar(&extractFlags.debugHTTP, "debug-http", false, "Dump document download request/response pairs to .dev/resty/docfetch.")
	rootCmd.AddCommand(extractCmd)
}

func extractOptions() extraction.Options {
	cfg, err := configutil.Read[Config](extractFlags.config)
	if err != nil {
		if !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}
		cfg = Config{}
	}

	opts := extraction.Options{
		CaseType:   cfg.CaseType,
		Registry:   cfg.Registry,
		YearFrom:   cfg.YearFrom,
		YearTo:     cfg.YearTo,
		Workers:    cfg.Workers,
		OutputPath: cfg.Output,
		PdfDir:     cfg.PdfDir,
		ProgressDB: cfg.ProgressDB,
		Headless:   cfg.Headless,
		Faked:      extractFlags.faked,
	}
	if extractFlags.caseType != "" {
		opts.CaseType = extractFlags.caseType
	}
	if extractFlags.registry != "" {
		opts.Registry = extractFlags.registry
	}
	if extractFlags.yearFrom != 0 {
		opts.YearFrom = extractFlags.yearFrom
	}
	if extractFlags.yearTo != 0 {
		opts.YearTo = extractFlags.yearTo
	}
	if extractFlags.workers != 0 {
		opts.Workers = extractFlags.workers
	}
	if extractFlags.output != "" {
		opts.OutputPath = extractFlags.output
	}
	if extractFlags.pdfDir != "" {
		opts.PdfDir = extractFlags.pdfDir
	}
	if extractFlags.progressDB != "" {
		opts.ProgressDB = extractFlags.progressDB
	}
	if extractCmd.Flags().Changed("headless") {
		opts.Headless = extractFlags.headless
	}
	if extractFlags.strict {
		opts.Recovery = casestore.RecoverFail
	}
	if opts.OutputPath == "" {
		opts.OutputPath = fmt.Sprintf(
			"%s_%s_cases_%d_%d.json",
			opts.Registry, opts.CaseType, opts.YearFrom, opts.YearTo,
		)
	}
	return opts
}

var extractCmd = &cobra.Command{
	Use:   "extract [--case-type <type>] [--registry <registry>] [--year-from <y>] [--year-to <y>]",
	Short: "Runs an extraction session over a year range and writes a resumable result file.",
}

func runExtract(cmd *cobra.Command, args []string) {
	opts := extractOptions()
	if extractFlags.debugHTTP {
		docfetch.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/docfetch"))
	}

	service, err := extraction.New(opts)
	if err != nil {
		serviceutil.Fatal("invalid extraction options", err)
	}

	ctx := serviceutil.SignalContext()
	telemetry.InstrumentPerfStats(ctx)
	slog.Info(
		"starting extraction",
		"case_type", opts.CaseType,
		"registry", opts.Registry,
		"years", fmt.Sprintf("%d-%d", opts.YearFrom, opts.YearTo),
		"workers", opts.Workers,
		"output", opts.OutputPath,
	)

	t1 := time.Now()
	report, err := service.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		serviceutil.Fatal("extraction failed", err)
	}
	slog.Info("extraction time", "seconds", time.Since(t1).Seconds())
	if err != nil {
		// an interrupted run still finalized a valid partial file,
		// show what it contains
		slog.Warn("extraction interrupted, partial results were finalized")
	}

	fmt.Println(report.Render())
}
