package scpcourt

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"caseharvest/lib/casestore"
)

const sampleDetailPage = `<html><body>
<span id="spCaseNo">C.A. 123/2020</span>
<span id="spCaseTitle">Province of Punjab v. Muhammad Aslam</span>
<span id="spStatus">Decided</span>
<span id="spInstDate">15/01/2020</span>
<span id="spDispDate">20/06/2022</span>
<span id="spAOR">Mr. Tariq Mehmood (ASC)<br>Ch. Akhtar Ali (AOR)<br>Additional Prosecutor General Punjab</span>
<div>
  <a href="/downloads/memo_123.pdf">Digital Copy of Petition</a>
  <a href="/downloads/judgement_123.pdf">Judgment Order File</a>
</div>
<div id="divResult">12/03/2021 Adjourned on request of counsel</div>
</body></html>`

const sampleEmptyDetailPage = `<html><body>
<span id="spCaseNo"></span>
<span id="spnNotFound">No Fixation History Found</span>
</body></html>`

func TestParseDetail(t *testing.T) {
	detail, err := ParseDetail(context.Background(), sampleDetailPage, Meta{
		WorkerID: 2,
		Page:     4,
		Year:     2020,
		CaseType: "C.A.",
		Registry: "Lahore",
	})
	require.NoError(t, err)

	record := detail.Record
	require.Equal(t, "C.A. 123/2020", record["Case_No"])
	require.Equal(t, "Province of Punjab v. Muhammad Aslam", record["Case_Title"])
	require.Equal(t, "Decided", record["Status"])
	require.Equal(t, "15/01/2020", record["Institution_Date"])
	require.Equal(t, "20/06/2022", record["Disposal_Date"])
	require.Equal(t, 2, record["Worker_ID"])
	require.Equal(t, 4, record["Page_Number"])
	require.Equal(t, "Lahore", record["Registry"])

	wantAdvocates := map[string]any{
		"ASC":        "Mr. Tariq Mehmood (ASC)",
		"AOR":        "Ch. Akhtar Ali (AOR)",
		"Prosecutor": "Additional Prosecutor General Punjab",
	}
	if diff := cmp.Diff(wantAdvocates, record["Advocates"]); diff != "" {
		t.Fatalf("advocates mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, detail.Memo, 1)
	require.Equal(t, "https://scp.gov.pk/downloads/memo_123.pdf", detail.Memo[0].Href)
	require.Len(t, detail.Judgment, 1)
	require.Equal(t, "https://scp.gov.pk/downloads/judgement_123.pdf", detail.Judgment[0].Href)

	memo := record["Petition_Appeal_Memo"].(map[string]any)
	require.Equal(t, "https://scp.gov.pk/downloads/memo_123.pdf", memo["File"])
	require.Equal(t, "PDF", memo["Type"])
	require.Equal(t, "No PDF Available", memo["Downloaded_Path"])
	require.Len(t, memo["Files"].([]any), 1)

	history := record["History"].([]any)
	require.Len(t, history, 1)
	require.Contains(t, history[0].(map[string]any)["note"], "Adjourned")
}

func TestParseDetailEmptyPage(t *testing.T) {
	detail, err := ParseDetail(context.Background(), sampleEmptyDetailPage, Meta{})
	require.NoError(t, err)

	record := detail.Record
	require.Equal(t, casestore.Sentinel, record["Case_No"])
	require.Equal(t, casestore.Sentinel, record["Case_Title"])

	memo := record["Petition_Appeal_Memo"].(map[string]any)
	require.Equal(t, casestore.Sentinel, memo["File"])
	require.Empty(t, memo["Files"])

	history := record["History"].([]any)
	require.Len(t, history, 1)
	require.Equal(t, "No Fixation History Found", history[0].(map[string]any)["note"])
}

func TestSetDownloaded(t *testing.T) {
	detail, err := ParseDetail(context.Background(), sampleDetailPage, Meta{})
	require.NoError(t, err)

	memo := detail.Record["Petition_Appeal_Memo"].(map[string]any)
	SetDownloaded(memo, 0, "pdfs/C.A._123_2020_memo_1.pdf")

	require.Equal(t, "pdfs/C.A._123_2020_memo_1.pdf", memo["Downloaded_Path"])
	file := memo["Files"].([]any)[0].(map[string]any)
	require.Equal(t, "pdfs/C.A._123_2020_memo_1.pdf", file["Downloaded_Path"])

	// out of range is a no-op
	SetDownloaded(memo, 5, "nope.pdf")
}
