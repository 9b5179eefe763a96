package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwpio/gdasprep/internal/cycle"
	"github.com/nwpio/gdasprep/internal/fsutil"
	"github.com/nwpio/gdasprep/internal/source"
)

// testPolicy keeps retries fast.
var testPolicy = Policy{MaxAttempts: 3, RetryBackoff: time.Millisecond, Timeout: 5 * time.Second}

// gribBody is a minimal blob that passes the container check.
func gribBody() []byte {
	return append([]byte("GRIB"), make([]byte, 60)...)
}

func testArtifact(t *testing.T, url, dir string) source.RemoteArtifact {
	t.Helper()
	c, err := cycle.Parse("2023060600")
	require.NoError(t, err)
	return source.RemoteArtifact{
		Cycle:     c,
		URL:       url,
		LocalPath: filepath.Join(dir, "gdas.t00z.pgrb2.0p25.f000"),
		Grid:      source.Grid0p25,
	}
}

func TestFetchSuccess(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(gribBody())
	}))
	defer srv.Close()

	cand := testArtifact(t, srv.URL+"/gdas.20230606/00/atmos/f000", t.TempDir())

	got, err := New(testPolicy).Fetch(context.Background(), []source.RemoteArtifact{cand})
	require.NoError(t, err)

	assert.False(t, got.Reused)
	assert.Equal(t, cand.LocalPath, got.Path)
	assert.Equal(t, int32(1), requests.Load())

	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Equal(t, gribBody(), data)

	_, err = os.Stat(fsutil.TempFor(cand.LocalPath))
	assert.True(t, os.IsNotExist(err), "temporary file must not survive a successful fetch")
}

func TestFetchReusesExistingFile(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(gribBody())
	}))
	defer srv.Close()

	dir := t.TempDir()
	cand := testArtifact(t, srv.URL+"/any", dir)
	require.NoError(t, os.WriteFile(cand.LocalPath, gribBody(), 0o644))

	got, err := New(testPolicy).Fetch(context.Background(), []source.RemoteArtifact{cand})
	require.NoError(t, err)

	assert.True(t, got.Reused)
	assert.Equal(t, int32(0), requests.Load(), "a complete local file must not trigger network I/O")
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(gribBody())
	}))
	defer srv.Close()

	cand := testArtifact(t, srv.URL+"/flaky", t.TempDir())

	got, err := New(testPolicy).Fetch(context.Background(), []source.RemoteArtifact{cand})
	require.NoError(t, err)
	assert.Equal(t, int32(3), requests.Load())
	assert.False(t, got.Reused)
}

func TestFetchFallsBackToNextCandidate(t *testing.T) {
	var first, second atomic.Int32
	srvMissing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first.Add(1)
		http.NotFound(w, r)
	}))
	defer srvMissing.Close()
	srvOK := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		second.Add(1)
		w.Write(gribBody())
	}))
	defer srvOK.Close()

	dir := t.TempDir()
	cands := []source.RemoteArtifact{
		testArtifact(t, srvMissing.URL+"/atmos-layout", dir),
		testArtifact(t, srvOK.URL+"/flat-layout", dir),
	}

	got, err := New(testPolicy).Fetch(context.Background(), cands)
	require.NoError(t, err)

	assert.Equal(t, int32(1), first.Load(), "absent candidates are not retried")
	assert.Equal(t, int32(1), second.Load())
	assert.FileExists(t, got.Path)
}

func TestFetchAllCandidatesMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cands := []source.RemoteArtifact{
		testArtifact(t, srv.URL+"/a", dir),
		testArtifact(t, srv.URL+"/b", dir),
	}

	_, err := New(testPolicy).Fetch(context.Background(), cands)
	require.ErrorIs(t, err, ErrMissingRemote)

	_, statErr := os.Stat(cands[0].LocalPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchRejectsNonGRIBBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>data file is not present</html>"))
	}))
	defer srv.Close()

	cand := testArtifact(t, srv.URL+"/filter", t.TempDir())

	_, err := New(Policy{MaxAttempts: 2, RetryBackoff: time.Millisecond}).
		Fetch(context.Background(), []source.RemoteArtifact{cand})
	require.ErrorIs(t, err, ErrMissingRemote)

	_, statErr := os.Stat(cand.LocalPath)
	assert.True(t, os.IsNotExist(statErr), "a rejected body must not land at the target path")
	_, statErr = os.Stat(fsutil.TempFor(cand.LocalPath))
	assert.True(t, os.IsNotExist(statErr), "partial files are removed before retrying")
}

func TestFetchDetectsShortBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Write([]byte("GRIB-but-truncated"))
	}))
	defer srv.Close()

	cand := testArtifact(t, srv.URL+"/truncated", t.TempDir())

	_, err := New(Policy{MaxAttempts: 2, RetryBackoff: time.Millisecond}).
		Fetch(context.Background(), []source.RemoteArtifact{cand})
	require.ErrorIs(t, err, ErrMissingRemote)

	_, statErr := os.Stat(fsutil.TempFor(cand.LocalPath))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gribBody())
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cand := testArtifact(t, srv.URL+"/any", t.TempDir())
	_, err := New(testPolicy).Fetch(ctx, []source.RemoteArtifact{cand})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchNoCandidates(t *testing.T) {
	_, err := New(testPolicy).Fetch(context.Background(), nil)
	require.ErrorIs(t, err, ErrMissingRemote)
}
