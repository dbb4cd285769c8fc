package extraction

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakedNavigator serves a deterministic synthetic version of the case
// search form. It lets the whole pipeline run without a browser, which
// is useful both for tests and for smoke-checking a deployment.
type FakedNavigator struct {
	// PagesPerYear and CasesPerPage shape the synthetic result set.
	PagesPerYear int
	CasesPerPage int

	mu   sync.Mutex
	year int
	page int
}

func NewFakedNavigator() *FakedNavigator {
	return &FakedNavigator{
		PagesPerYear: 2,
		CasesPerPage: 3,
	}
}

func (f *FakedNavigator) OpenSearch(ctx context.Context) error { return ctx.Err() }

func (f *FakedNavigator) Search(ctx context.Context, caseType, registry string, year int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.year = year
	f.page = 1
	return ctx.Err()
}

func (f *FakedNavigator) TotalPages(ctx context.Context) (int, error) {
	return f.PagesPerYear, ctx.Err()
}

func (f *FakedNavigator) GotoPage(ctx context.Context, page int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page < 1 || page > f.PagesPerYear {
		return fmt.Errorf("no pager link for page %d", page)
	}
	f.page = page
	return ctx.Err()
}

func (f *FakedNavigator) CaseCount(ctx context.Context) (int, error) {
	return f.CasesPerPage, ctx.Err()
}

func (f *FakedNavigator) OpenDetails(ctx context.Context, i int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= f.CasesPerPage {
		return "", fmt.Errorf("no detail link at index %d", i)
	}
	caseNo := fmt.Sprintf("C.A.%d/%d", (f.page-1)*f.CasesPerPage+i+1, f.year)
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body>
<span id="spCaseNo">%s</span>
<span id="spCaseTitle">Appellant %d v. Respondent</span>
<span id="spStatus">Pending</span>
<span id="spInstDate">01/01/%d</span>
<span id="spDispDate"></span>
<span id="spAOR">Mr. Counsel (AOR)<br>Mr. State Counsel (ASC)</span>
</body></html>`, caseNo, i+1, f.year)
	return b.String(), ctx.Err()
}

func (f *FakedNavigator) Back(ctx context.Context) error { return ctx.Err() }

func (f *FakedNavigator) Close() {}
