// Package extraction coordinates one extraction session: it fans a
// year range out across concurrent browser workers, runs each search's
// pagination, parses every detail page and feeds the records into the
// result store. All the knobs the old per-script variants hard-coded
// live in Options.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"caseharvest/lib/casestore"
	"caseharvest/lib/docfetch"
	"caseharvest/lib/progress"
	"caseharvest/lib/scrapers/scpcourt"
)

var tracer = otel.Tracer("caseharvest.services.extraction")

// Navigator is the slice of scpcourt.Session the scheduler drives. It
// exists so tests can run the whole pipeline against a faked form.
type Navigator interface {
	OpenSearch(ctx context.Context) error
	Search(ctx context.Context, caseType, registry string, year int) error
	TotalPages(ctx context.Context) (int, error)
	GotoPage(ctx context.Context, page int) error
	CaseCount(ctx context.Context) (int, error)
	OpenDetails(ctx context.Context, i int) (string, error)
	Back(ctx context.Context) error
	Close()
}

// Fetcher mirrors docfetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, href, caseNo, kind string) (string, error)
}

// resultStore is the slice of casestore.Store the workers touch.
type resultStore interface {
	Commit(record casestore.Record) (bool, error)
	Count() int
}

type Options struct {
	CaseType string
	Registry string
	YearFrom int
	YearTo   int
	// Workers is the number of concurrent browser sessions. Zero means 3.
	Workers    int
	OutputPath string
	// PdfDir enables document downloads when non-empty.
	PdfDir string
	// ProgressDB enables the page checkpoint ledger when non-empty.
	ProgressDB string
	Headless   bool
	Recovery   casestore.RecoveryMode
	Retry      scpcourt.RetryOptions
	// Faked swaps the browser for a synthetic form, for smoke runs
	// without a chrome install.
	Faked bool
}

// Report reconciles what the workers offered against what the store
// accepted. Offered = Committed + Duplicates + Rejected always holds;
// Failed counts cases abandoned before the store accepted an offer,
// including store write errors.
type Report struct {
	Offered    int64
	Committed  int64
	Duplicates int64
	Rejected   int64
	Failed     int64
	Summary    casestore.Summary
}

type Service struct {
	opts       Options
	newSession func(ctx context.Context) (Navigator, error)

	offered    atomic.Int64
	committed  atomic.Int64
	duplicates atomic.Int64
	rejected   atomic.Int64
	failed     atomic.Int64
}

func New(opts Options) (*Service, error) {
	if opts.CaseType == "" || opts.Registry == "" {
		return nil, fmt.Errorf("case type and registry are required")
	}
	if opts.YearFrom == 0 || opts.YearTo == 0 || opts.YearFrom > opts.YearTo {
		return nil, fmt.Errorf("invalid year range %d-%d", opts.YearFrom, opts.YearTo)
	}
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if opts.Workers == 0 {
		opts.Workers = 3
	}

	s := &Service{opts: opts}
	if opts.Faked {
		s.newSession = func(ctx context.Context) (Navigator, error) {
			return NewFakedNavigator(), nil
		}
	} else {
		s.newSession = func(ctx context.Context) (Navigator, error) {
			return scpcourt.NewSession(ctx, scpcourt.Options{
				Headless: opts.Headless,
			})
		}
	}
	return s, nil
}

// Run executes the session end to end and finalizes the output file
// even when some units failed, so a partial run still leaves valid
// JSON behind. The next run resumes from the checkpoint ledger and the
// store's own dedup.
func (s *Service) Run(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("case_type", s.opts.CaseType),
		attribute.String("registry", s.opts.Registry),
		attribute.Int("year_from", s.opts.YearFrom),
		attribute.Int("year_to", s.opts.YearTo),
		attribute.Int("workers", s.opts.Workers),
	)

	store, err := casestore.Open(casestore.Options{
		Path:     s.opts.OutputPath,
		KeyField: "Case_No",
		Recovery: s.opts.Recovery,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open result store")
		return Report{}, err
	}

	var ledger *progress.Ledger
	if s.opts.ProgressDB != "" {
		ledger, err = progress.Open(s.opts.ProgressDB)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open progress ledger")
			return Report{}, err
		}
		defer ledger.Close()
	}

	var fetcher Fetcher
	if s.opts.PdfDir != "" && !s.opts.Faked {
		client, err := docfetch.NewClient(docfetch.Options{
			BaseUrl: scpcourt.BaseUrl,
			Dir:     s.opts.PdfDir,
		})
		if err != nil {
			return Report{}, err
		}
		fetcher = client
	}

	years := make(chan int)
	go func() {
		defer close(years)
		for year := s.opts.YearFrom; year <= s.opts.YearTo; year++ {
			select {
			case years <- year:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 1; w <= s.opts.Workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, years, store, ledger, fetcher)
		}(w)
	}
	wg.Wait()

	summary, err := store.Finalize()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to finalize result store")
		return Report{}, err
	}

	report := Report{
		Offered:    s.offered.Load(),
		Committed:  s.committed.Load(),
		Duplicates: s.duplicates.Load(),
		Rejected:   s.rejected.Load(),
		Failed:     s.failed.Load(),
		Summary:    summary,
	}
	slog.Info(
		"extraction session finished",
		"offered", report.Offered,
		"committed", report.Committed,
		"duplicates", report.Duplicates,
		"rejected", report.Rejected,
		"failed", report.Failed,
		"total_in_file", summary.TotalRecords,
	)
	return report, ctx.Err()
}

func (s *Service) worker(
	ctx context.Context,
	workerID int,
	years <-chan int,
	store resultStore,
	ledger *progress.Ledger,
	fetcher Fetcher,
) {
	nav, err := s.newSession(ctx)
	if err != nil {
		slog.Error("failed to start browser session", "worker", workerID, "err", err)
		return
	}
	defer nav.Close()

	for year := range years {
		if ctx.Err() != nil {
			return
		}
		err := s.processYear(ctx, nav, workerID, year, store, ledger, fetcher)
		if err != nil {
			slog.Error(
				"year abandoned",
				"worker", workerID,
				"year", year,
				"err", err,
			)
		}
	}
}

func (s *Service) processYear(
	ctx context.Context,
	nav Navigator,
	workerID int,
	year int,
	store resultStore,
	ledger *progress.Ledger,
	fetcher Fetcher,
) error {
	ctx, span := tracer.Start(ctx, "processYear")
	defer span.End()
	span.SetAttributes(
		attribute.Int("worker", workerID),
		attribute.Int("year", year),
	)

	err := scpcourt.Retry(ctx, "search", s.opts.Retry, func(ctx context.Context) error {
		err := nav.OpenSearch(ctx)
		if err != nil {
			return err
		}
		return nav.Search(ctx, s.opts.CaseType, s.opts.Registry, year)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return err
	}

	totalPages, err := nav.TotalPages(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	slog.Info(
		"search produced results",
		"worker", workerID,
		"year", year,
		"pages", totalPages,
	)

	for page := 1; page <= totalPages; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		unit := progress.Unit{
			CaseType: s.opts.CaseType,
			Registry: s.opts.Registry,
			Year:     year,
			Page:     page,
		}
		if ledger != nil {
			done, err := ledger.IsComplete(ctx, unit)
			if err != nil {
				return err
			}
			if done {
				slog.Debug("skipping completed page", "year", year, "page", page)
				continue
			}
		}

		clean, err := s.processPage(ctx, nav, workerID, year, page, store, fetcher)
		if err != nil {
			slog.Warn(
				"page abandoned",
				"worker", workerID,
				"year", year,
				"page", page,
				"err", err,
			)
			continue
		}
		// only a page with no failed rows is checkpointed, a replayed
		// page just produces duplicate offers the store drops
		if clean && ledger != nil {
			err = ledger.MarkComplete(ctx, unit)
			if err != nil {
				slog.Warn("failed to checkpoint page", "year", year, "page", page, "err", err)
			}
		}
	}
	return nil
}

func (s *Service) processPage(
	ctx context.Context,
	nav Navigator,
	workerID, year, page int,
	store resultStore,
	fetcher Fetcher,
) (clean bool, err error) {
	if page > 1 {
		err := scpcourt.Retry(ctx, "goto page", s.opts.Retry, func(ctx context.Context) error {
			return nav.GotoPage(ctx, page)
		})
		if err != nil {
			return false, err
		}
	}

	count, err := nav.CaseCount(ctx)
	if err != nil {
		return false, err
	}

	clean = true
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		err := s.processCase(ctx, nav, workerID, year, page, i, store, fetcher)
		if err != nil {
			s.failed.Add(1)
			clean = false
			slog.Warn(
				"case abandoned",
				"worker", workerID,
				"year", year,
				"page", page,
				"case", i,
				"err", err,
			)
		}
	}
	return clean, nil
}

func (s *Service) processCase(
	ctx context.Context,
	nav Navigator,
	workerID, year, page, index int,
	store resultStore,
	fetcher Fetcher,
) error {
	var pageHTML string
	err := scpcourt.Retry(ctx, "open details", s.opts.Retry, func(ctx context.Context) (err error) {
		pageHTML, err = nav.OpenDetails(ctx, index)
		return err
	})
	if err != nil {
		return err
	}
	// always try to get back to the grid, otherwise the rest of the
	// page is unreachable
	defer func() {
		backErr := nav.Back(ctx)
		if backErr != nil {
			slog.Warn("failed to return to result grid", "worker", workerID, "err", backErr)
		}
	}()

	detail, err := scpcourt.ParseDetail(ctx, pageHTML, scpcourt.Meta{
		WorkerID: workerID,
		Page:     page,
		Year:     year,
		CaseType: s.opts.CaseType,
		Registry: s.opts.Registry,
	})
	if err != nil {
		return err
	}

	if fetcher != nil {
		s.fetchDocuments(ctx, fetcher, detail)
	}

	committed, err := store.Commit(detail.Record)
	if err != nil {
		// the caller counts this under Failed, not Offered, so the
		// reconciliation stays balanced
		return err
	}
	s.offered.Add(1)
	caseNo, _ := detail.Record["Case_No"].(string)
	switch {
	case committed:
		s.committed.Add(1)
		slog.Info(
			"case committed",
			"worker", workerID,
			"case_no", caseNo,
			"total", store.Count(),
		)
	case caseNo == "" || caseNo == casestore.Sentinel:
		s.rejected.Add(1)
		slog.Debug("case without usable number skipped", "year", year, "page", page, "index", index)
	default:
		s.duplicates.Add(1)
		slog.Debug("duplicate case skipped", "case_no", caseNo)
	}
	return nil
}

func (s *Service) fetchDocuments(ctx context.Context, fetcher Fetcher, detail scpcourt.Detail) {
	caseNo, _ := detail.Record["Case_No"].(string)
	if caseNo == "" || caseNo == casestore.Sentinel {
		return
	}

	memo := detail.Record["Petition_Appeal_Memo"].(map[string]any)
	for i, anchor := range detail.Memo {
		s.fetchOne(ctx, fetcher, memo, anchor.Href, caseNo, fmt.Sprintf("memo_%d", i+1), i)
	}
	judgment := detail.Record["Judgement_Order"].(map[string]any)
	for i, anchor := range detail.Judgment {
		s.fetchOne(ctx, fetcher, judgment, anchor.Href, caseNo, fmt.Sprintf("judgment_%d", i+1), i)
	}
}

func (s *Service) fetchOne(
	ctx context.Context,
	fetcher Fetcher,
	section map[string]any,
	href, caseNo, kind string,
	index int,
) {
	path, err := fetcher.Fetch(ctx, href, caseNo, kind)
	if err != nil {
		slog.Warn("document download failed", "case_no", caseNo, "kind", kind, "err", err)
		scpcourt.SetDownloaded(section, index, fmt.Sprintf("Download Failed: %s", err))
		return
	}
	scpcourt.SetDownloaded(section, index, path)
}
