package scpcourt

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"caseharvest/lib/casestore"
	"caseharvest/lib/htmlutil"
)

// Meta carries the provenance fields stamped onto every record so an
// output file can be traced back to the search that produced it.
type Meta struct {
	WorkerID int
	Page     int
	Year     int
	CaseType string
	Registry string
}

// Detail is one parsed detail page: the record ready for the store plus
// the document links split by kind for the PDF fetcher.
type Detail struct {
	Record   casestore.Record
	Memo     []htmlutil.Anchor
	Judgment []htmlutil.Anchor
}

func spanOrSentinel(doc *goquery.Document, id string) string {
	text := htmlutil.SpanText(doc, id)
	if text == "" {
		return casestore.Sentinel
	}
	return text
}

// parseAdvocates splits the combined counsel span into the three roles
// the form packs into it. Lines are classified by their role marker.
func parseAdvocates(doc *goquery.Document) map[string]any {
	advocates := map[string]any{
		"ASC":        casestore.Sentinel,
		"AOR":        casestore.Sentinel,
		"Prosecutor": casestore.Sentinel,
	}
	for _, line := range htmlutil.SplitLines(doc.Find("#spAOR")) {
		switch {
		case strings.Contains(line, "(AOR)"):
			advocates["AOR"] = line
		case strings.Contains(line, "(ASC)"):
			advocates["ASC"] = line
		case strings.Contains(strings.ToLower(line), "prosecutor"):
			advocates["Prosecutor"] = line
		}
	}
	return advocates
}

func isDocumentAnchor(a htmlutil.Anchor) bool {
	name := strings.ToLower(a.Name)
	href := strings.ToLower(a.Href)
	if strings.Contains(href, ".pdf") {
		return true
	}
	return strings.Contains(name, "digital copy")
}

var judgmentKeywords = []string{"judgment", "judgement", "order"}

func isJudgmentAnchor(a htmlutil.Anchor) bool {
	name := strings.ToLower(a.Name)
	for _, kw := range judgmentKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func documentSection(anchors []htmlutil.Anchor) map[string]any {
	section := map[string]any{
		"File":            casestore.Sentinel,
		"Type":            casestore.Sentinel,
		"Downloaded_Path": "No PDF Available",
		"Files":           []any{},
	}
	if len(anchors) == 0 {
		return section
	}

	files := make([]any, len(anchors))
	for i, a := range anchors {
		files[i] = map[string]any{
			"File":            a.Href,
			"Type":            "PDF",
			"Description":     a.Name,
			"Downloaded_Path": "No PDF Available",
		}
	}
	section["File"] = anchors[0].Href
	section["Type"] = "PDF"
	section["Files"] = files
	return section
}

// SetDownloaded records the local path of a fetched document on the
// section produced by documentSection. The first file's path doubles as
// the section-level one, mirroring the output shape readers rely on.
func SetDownloaded(section map[string]any, i int, path string) {
	files, _ := section["Files"].([]any)
	if i < 0 || i >= len(files) {
		return
	}
	file, _ := files[i].(map[string]any)
	if file == nil {
		return
	}
	file["Downloaded_Path"] = path
	if i == 0 {
		section["Downloaded_Path"] = path
	}
}

func parseHistory(doc *goquery.Document) []any {
	notFound := htmlutil.SpanText(doc, "spnNotFound")
	if strings.Contains(notFound, "No Fixation History Found") {
		return []any{map[string]any{"note": "No Fixation History Found"}}
	}

	history := []any{}
	text := htmlutil.CollapseText(doc.Find("#divResult").Text())
	if text != "" && !strings.Contains(text, "No Fixation History Found") {
		history = append(history, map[string]any{"note": text})
	}
	return history
}

// ParseDetail turns one detail page into a record shaped like the
// output files downstream consumers already parse. Fields the page does
// not carry come back as the "N/A" sentinel rather than being omitted.
func ParseDetail(ctx context.Context, pageHTML string, meta Meta) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return Detail{}, fmt.Errorf("parsing detail page: %w", err)
	}

	base, _ := url.Parse(SearchUrl)
	var memo, judgment []htmlutil.Anchor
	for _, a := range htmlutil.GetAnchors(ctx, doc.Selection, base) {
		if !isDocumentAnchor(a) {
			continue
		}
		if isJudgmentAnchor(a) {
			judgment = append(judgment, a)
		} else {
			memo = append(memo, a)
		}
	}

	record := casestore.Record{
		"Case_No":              spanOrSentinel(doc, "spCaseNo"),
		"Case_Title":           spanOrSentinel(doc, "spCaseTitle"),
		"Status":               spanOrSentinel(doc, "spStatus"),
		"Institution_Date":     spanOrSentinel(doc, "spInstDate"),
		"Disposal_Date":        spanOrSentinel(doc, "spDispDate"),
		"Advocates":            parseAdvocates(doc),
		"Petition_Appeal_Memo": documentSection(memo),
		"Judgement_Order":      documentSection(judgment),
		"History":              parseHistory(doc),
		"Worker_ID":            meta.WorkerID,
		"Page_Number":          meta.Page,
		"Year":                 meta.Year,
		"Case_Type":            meta.CaseType,
		"Registry":             meta.Registry,
	}

	return Detail{
		Record:   record,
		Memo:     memo,
		Judgment: judgment,
	}, nil
}
