package casestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func caseRecord(caseNo string) Record {
	return Record{
		"Case_No":    caseNo,
		"Case_Title": "Some Petitioner v. Some Respondent",
		"Status":     "Decided",
	}
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(Options{Path: path, KeyField: "Case_No"})
	require.NoError(t, err)
	return store
}

func loadArray(t *testing.T, path string) []Record {
	t.Helper()
	records, err := Load(path)
	require.NoError(t, err)
	return records
}

func TestCommitAndFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	store := openTestStore(t, path)

	ok, err := store.Commit(caseRecord("C.A. 123/2020"))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Commit(caseRecord("C.A. 124/2020"))
	require.NoError(t, err)
	require.True(t, ok)

	// duplicate offer is rejected, not an error
	ok, err = store.Commit(caseRecord("C.A. 123/2020"))
	require.NoError(t, err)
	require.False(t, ok)

	summary, err := store.Finalize()
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalRecords)
	require.False(t, summary.AppendMode)

	records := loadArray(t, path)
	require.Len(t, records, 2)
	require.Equal(t, "C.A. 123/2020", records[0]["Case_No"])
	require.Equal(t, "C.A. 124/2020", records[1]["Case_No"])
}

func TestRejectionWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	store := openTestStore(t, path)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, record := range []Record{
		{"Case_Title": "no key field"},
		{"Case_No": ""},
		{"Case_No": Sentinel},
		{"Case_No": 42},
	} {
		ok, err := store.Commit(record)
		require.NoError(t, err)
		require.False(t, ok)
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, 0, store.Count())
}

func TestEmptySessionFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	store := openTestStore(t, path)

	summary, err := store.Finalize()
	require.NoError(t, err)
	require.Equal(t, 0, summary.TotalRecords)

	records := loadArray(t, path)
	require.Empty(t, records)

	var sidecar Summary
	contents, err := os.ReadFile(SummaryPath(path))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(contents, &sidecar))
	require.Equal(t, 0, sidecar.TotalRecords)
	require.Equal(t, path, sidecar.OutputPath)
}

func TestIdempotentFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	store := openTestStore(t, path)

	_, err := store.Commit(caseRecord("C.A. 1/2021"))
	require.NoError(t, err)

	first, err := store.Finalize()
	require.NoError(t, err)
	second, err := store.Finalize()
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Len(t, loadArray(t, path), 1)

	// a commit after finalize is a silent no-op
	ok, err := store.Commit(caseRecord("C.A. 2/2021"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResumeAfterCrash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")

	store := openTestStore(t, path)
	_, err := store.Commit(caseRecord("C.A. 10/2019"))
	require.NoError(t, err)
	_, err = store.Commit(caseRecord("C.A. 11/2019"))
	require.NoError(t, err)
	// simulated crash: no Finalize, the file stays unterminated

	resumed := openTestStore(t, path)
	require.Equal(t, 2, resumed.Count())

	ok, err := resumed.Commit(caseRecord("C.A. 10/2019"))
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = resumed.Commit(caseRecord("C.A. 12/2019"))
	require.NoError(t, err)
	require.True(t, ok)

	summary, err := resumed.Finalize()
	require.NoError(t, err)
	require.Equal(t, 3, summary.TotalRecords)
	require.True(t, summary.AppendMode)

	records := loadArray(t, path)
	require.Len(t, records, 3)
	seen := map[string]bool{}
	for _, r := range records {
		seen[r["Case_No"].(string)] = true
	}
	require.True(t, seen["C.A. 10/2019"])
	require.True(t, seen["C.A. 11/2019"])
	require.True(t, seen["C.A. 12/2019"])
}

func TestReopenFinalizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")

	store := openTestStore(t, path)
	_, err := store.Commit(caseRecord("C.A. 5/2018"))
	require.NoError(t, err)
	_, err = store.Finalize()
	require.NoError(t, err)

	resumed := openTestStore(t, path)
	ok, err := resumed.Commit(caseRecord("C.A. 6/2018"))
	require.NoError(t, err)
	require.True(t, ok)
	_, err = resumed.Finalize()
	require.NoError(t, err)

	records := loadArray(t, path)
	require.Len(t, records, 2)
}

func TestRecordWithBracketNearTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")

	store := openTestStore(t, path)
	record := caseRecord("C.A. 7/2017")
	record["History"] = []any{map[string]any{"note": "fixed [adjourned]"}}
	_, err := store.Commit(record)
	require.NoError(t, err)
	_, err = store.Finalize()
	require.NoError(t, err)

	resumed := openTestStore(t, path)
	_, err = resumed.Commit(caseRecord("C.A. 8/2017"))
	require.NoError(t, err)
	_, err = resumed.Finalize()
	require.NoError(t, err)

	records := loadArray(t, path)
	require.Len(t, records, 2)
	history := records[0]["History"].([]any)
	require.Equal(t, "fixed [adjourned]", history[0].(map[string]any)["note"])
}

func TestCorruptedFileRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	require.NoError(t, os.WriteFile(path, []byte("{ not an array"), 0644))

	store := openTestStore(t, path)
	require.Equal(t, 0, store.Count())

	_, err := store.Commit(caseRecord("C.A. 9/2016"))
	require.NoError(t, err)
	_, err = store.Finalize()
	require.NoError(t, err)
	require.Len(t, loadArray(t, path), 1)
}

func TestCorruptedFileFailsWhenStrict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	require.NoError(t, os.WriteFile(path, []byte("{ not an array"), 0644))

	_, err := Open(Options{Path: path, KeyField: "Case_No", Recovery: RecoverFail})
	require.Error(t, err)

	// the corrupted content must survive for manual inspection
	content, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	require.Equal(t, "{ not an array", string(content))
}

func TestConcurrentCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	store := openTestStore(t, path)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				record := caseRecord(fmt.Sprintf("C.A. %d/20%02d", i, w))
				_, err := store.Commit(record)
				if err != nil {
					t.Error(err)
					return
				}
				// every key is also offered from a second goroutine's
				// worth of duplicates via the shared loop below
			}
		}(w)
	}
	// duplicate pressure: offer the same keys again concurrently
	wg.Add(1)
	go func() {
		defer wg.Done()
		for w := 0; w < workers; w++ {
			for i := 0; i < perWorker; i++ {
				store.Commit(caseRecord(fmt.Sprintf("C.A. %d/20%02d", i, w)))
			}
		}
	}()
	wg.Wait()

	summary, err := store.Finalize()
	require.NoError(t, err)
	require.Equal(t, workers*perWorker, summary.TotalRecords)

	records := loadArray(t, path)
	require.Len(t, records, workers*perWorker)
	unique := map[string]bool{}
	for _, r := range records {
		unique[r["Case_No"].(string)] = true
	}
	require.Len(t, unique, workers*perWorker)
}

func TestRepair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")

	store := openTestStore(t, path)
	_, err := store.Commit(caseRecord("C.A. 99/2022"))
	require.NoError(t, err)
	// no Finalize

	repaired, err := Repair(path)
	require.NoError(t, err)
	require.True(t, repaired)
	require.Len(t, loadArray(t, path), 1)

	repaired, err = Repair(path)
	require.NoError(t, err)
	require.False(t, repaired)
}
