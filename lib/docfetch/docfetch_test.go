package docfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/downloads/doc.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer server.Close()

	dir := t.TempDir()
	client, err := NewClient(Options{BaseUrl: server.URL, Dir: dir})
	require.NoError(t, err)

	ctx := context.Background()

	path, err := client.Fetch(ctx, "/downloads/doc.pdf", "C.A. 123/2020", "judgment_1")
	require.NoError(t, err)
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 fake", string(contents))
	require.Equal(t, int64(1), hits.Load())

	// second fetch is served from disk
	again, err := client.Fetch(ctx, "/downloads/doc.pdf", "C.A. 123/2020", "judgment_1")
	require.NoError(t, err)
	require.Equal(t, path, again)
	require.Equal(t, int64(1), hits.Load())

	_, err = client.Fetch(ctx, "/downloads/missing.pdf", "C.A. 124/2020", "memo_1")
	require.Error(t, err)

	_, err = client.Fetch(ctx, "N/A", "C.A. 125/2020", "memo_1")
	require.ErrorIs(t, err, ErrNoDocument)
}

func TestFilename(t *testing.T) {
	require.Equal(t, "C.A._123_2020_memo_1.pdf", Filename("C.A. 123/2020", "memo_1"))
}
