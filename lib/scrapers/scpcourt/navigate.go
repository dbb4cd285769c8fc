package scpcourt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type selectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

const readOptionsJS = `Array.from(document.querySelectorAll('%s option'))
	.map(o => ({value: o.value, label: o.textContent.trim()}))`

// selectValueJS sets a dropdown and fires its change event, since a bare
// value assignment does not trigger the page's own handlers.
const selectValueJS = `(() => {
	const sel = document.querySelector('%s');
	sel.value = %s;
	sel.dispatchEvent(new Event('change', { bubbles: true }));
})()`

func (s *Session) readOptions(ctx context.Context, selector string) ([]selectOption, error) {
	var options []selectOption
	err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(readOptionsJS, selector), &options))
	return options, err
}

func normalizeLabel(s string) string {
	var out strings.Builder
	for _, c := range strings.ToLower(s) {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// resolveOption finds the option whose label best matches `want`.
// Labels are compared normalized so "CA", "C.A" and "C.A." all resolve
// to the same entry; failing an exact normalized hit, the closest label
// by Jaro-Winkler similarity wins as long as it clears 0.85.
func resolveOption(options []selectOption, want string) (selectOption, error) {
	wantNorm := normalizeLabel(want)

	for _, o := range options {
		if o.Value != "" && normalizeLabel(o.Label) == wantNorm {
			return o, nil
		}
	}

	var best selectOption
	bestSim := 0.0
	for _, o := range options {
		if o.Value == "" {
			continue
		}
		sim := matchr.JaroWinkler(normalizeLabel(o.Label), wantNorm, false)
		if sim > bestSim {
			bestSim = sim
			best = o
		}
	}
	if bestSim < 0.85 {
		return selectOption{}, fmt.Errorf("no dropdown option matches %q", want)
	}
	return best, nil
}

func (s *Session) selectByLabel(ctx context.Context, selector, want string) error {
	options, err := s.readOptions(ctx, selector)
	if err != nil {
		return err
	}
	option, err := resolveOption(options, want)
	if err != nil {
		return fmt.Errorf("%s: %w", selector, err)
	}
	return s.run(ctx,
		chromedp.Evaluate(fmt.Sprintf(
			selectValueJS, selector, strconv.Quote(option.Value),
		), nil),
		chromedp.Sleep(time.Second),
	)
}

// Search fills the three dropdowns and submits the form. The session
// must already sit on the search page (OpenSearch).
func (s *Session) Search(ctx context.Context, caseType, registry string, year int) error {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("case_type", caseType),
		attribute.String("registry", registry),
		attribute.Int("year", year),
	)

	err := s.selectByLabel(ctx, "#ddlCaseType", caseType)
	if err == nil {
		err = s.selectByLabel(ctx, "#ddlRegistry", registry)
	}
	if err == nil {
		err = s.selectByLabel(ctx, "#ddlYear", strconv.Itoa(year))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fill search form")
		return err
	}

	err = s.run(ctx,
		chromedp.ScrollIntoView("#btnSearch", chromedp.ByQuery),
		chromedp.Click("#btnSearch", chromedp.ByQuery),
		// the result grid arrives via full postback, give it time
		chromedp.Sleep(time.Second*5),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search submission failed")
		return err
	}
	return nil
}

const countPagerLinksJS = `Array.from(document.querySelectorAll('a[href*="Page$"]'))
	.filter(a => a.textContent.trim() !== '...').length`

// TotalPages reports how many result pages the current search produced.
// The pager omits a link for the page we are on, hence the +1.
func (s *Session) TotalPages(ctx context.Context) (int, error) {
	var others int
	err := s.run(ctx, chromedp.Evaluate(countPagerLinksJS, &others))
	if err != nil {
		return 0, err
	}
	return others + 1, nil
}

const clickPagerLinkJS = `(() => {
	const links = Array.from(document.querySelectorAll('a[href*="Page$"]'));
	const exact = links.find(a => a.textContent.trim() === '%d');
	if (exact) { exact.scrollIntoView(true); exact.click(); return 'clicked'; }
	const ellipses = links.filter(a => a.textContent.trim() === '...');
	if (ellipses.length > 0) {
		const next = ellipses[ellipses.length - 1];
		next.scrollIntoView(true); next.click();
		return 'ellipsis';
	}
	return 'missing';
})()`

// GotoPage navigates the pager to the given result page. Pages outside
// the currently visible pager window are reached by walking the
// trailing ellipsis link until their number shows up.
func (s *Session) GotoPage(ctx context.Context, page int) error {
	ctx, span := tracer.Start(ctx, "GotoPage")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page))

	if page == 1 {
		return nil
	}

	// each ellipsis click reveals another pager window; ten windows is
	// far beyond anything the form actually serves
	for hop := 0; hop < 10; hop++ {
		var outcome string
		err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickPagerLinkJS, page), &outcome))
		if err != nil {
			span.RecordError(err)
			return err
		}

		switch outcome {
		case "clicked":
			return s.run(ctx, chromedp.Sleep(time.Second*3))
		case "ellipsis":
			err = s.run(ctx, chromedp.Sleep(time.Second*3))
			if err != nil {
				return err
			}
		default:
			err = fmt.Errorf("page %d not reachable from pager", page)
			span.RecordError(err)
			span.SetStatus(codes.Error, "pager link missing")
			return err
		}
	}
	return fmt.Errorf("page %d not reached after walking pager", page)
}

const countDetailLinksJS = `Array.from(document.querySelectorAll('a'))
	.filter(a => a.textContent.includes('View Details')).length`

// CaseCount reports how many "View Details" rows the current result
// page shows.
func (s *Session) CaseCount(ctx context.Context) (int, error) {
	var count int
	err := s.run(ctx, chromedp.Evaluate(countDetailLinksJS, &count))
	return count, err
}

const clickDetailLinkJS = `(() => {
	const links = Array.from(document.querySelectorAll('a'))
		.filter(a => a.textContent.includes('View Details'));
	if (%d >= links.length) return false;
	links[%d].scrollIntoView(true);
	links[%d].click();
	return true;
})()`

// OpenDetails clicks the i-th "View Details" link on the current result
// page and returns the detail page HTML. Use Back to return to the
// results afterwards.
func (s *Session) OpenDetails(ctx context.Context, i int) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenDetails")
	defer span.End()
	span.SetAttributes(attribute.Int("index", i))

	var clicked bool
	err := s.run(ctx,
		chromedp.Evaluate(fmt.Sprintf(clickDetailLinkJS, i, i, i), &clicked),
	)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if !clicked {
		err = fmt.Errorf("detail link %d out of range", i)
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail link out of range")
		return "", err
	}

	err = s.run(ctx, chromedp.Sleep(time.Second*2))
	if err != nil {
		return "", err
	}
	return s.HTML(ctx)
}

// Back returns from a detail page to the result grid it was opened
// from, riding out the resubmission interstitial if the browser raises
// one.
func (s *Session) Back(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Back")
	defer span.End()

	err := s.run(ctx,
		chromedp.NavigateBack(),
		chromedp.Sleep(time.Second),
	)
	if err != nil {
		span.RecordError(err)
		return err
	}

	recovered, err := s.recoverResubmission(ctx)
	if recovered {
		span.SetAttributes(attribute.Bool("resubmission_recovered", true))
	}
	return err
}
