package distribution

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uploadRecord captures what the fake dbfileupload endpoint received.
type uploadRecord struct {
	path     string
	auth     string
	headers  http.Header
	body     []byte
	received bool
}

func newUploadServer(t *testing.T, status int) (*httptest.Server, *uploadRecord) {
	t.Helper()

	rec := &uploadRecord{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		rec.received = true
		rec.path = r.URL.Path
		rec.auth = r.Header.Get("Authorization")
		rec.headers = r.Header.Clone()
		rec.body = body
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func newTestJDS(t *testing.T, url string, packages PackageLister) *JDSRepository {
	t.Helper()

	repo, err := NewJDS(JDSConfig{
		URL:      url,
		Username: "casperadmin",
		Password: "hunter2",
		Packages: packages,
	})
	require.NoError(t, err)
	return repo
}

func TestNewJDSMissingFields(t *testing.T) {
	_, err := NewJDS(JDSConfig{URL: "https://jss.example.org"})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "JDS", cfgErr.Kind)
	assert.Equal(t, []string{"username", "password"}, cfgErr.Missing)
}

func TestJDSUploadURL(t *testing.T) {
	repo := newTestJDS(t, "https://jss.example.org/", nil)
	assert.Equal(t, "https://jss.example.org/dbfileupload", repo.UploadURL())
}

func TestCopyPackageUploadHeaders(t *testing.T) {
	server, rec := newUploadServer(t, http.StatusOK)
	repo := newTestJDS(t, server.URL, nil)

	artifact := filepath.Join(t.TempDir(), "Firefox-130.0.pkg")
	require.NoError(t, os.WriteFile(artifact, []byte("pkg payload"), 0o644))

	require.NoError(t, repo.CopyPackage(context.Background(), artifact, ""))
	require.True(t, rec.received)

	assert.Equal(t, "/dbfileupload", rec.path)
	assert.Equal(t, "Basic Y2FzcGVyYWRtaW46aHVudGVyMg==", rec.auth)
	assert.Equal(t, "text/xml", rec.headers.Get("Content-Type"),
		"the endpoint expects text/xml even though the body is form data")
	assert.Equal(t, "1", rec.headers.Get("DESTINATION"))
	assert.Equal(t, "-1", rec.headers.Get("OBJECT_ID"), "empty target ID means create new")
	assert.Equal(t, "0", rec.headers.Get("FILE_TYPE"))
	assert.Equal(t, "Firefox-130.0.pkg", rec.headers.Get("FILE_NAME"))
	assert.Contains(t, string(rec.body), "pkg payload")
}

func TestCopyPackageWithTargetID(t *testing.T) {
	server, rec := newUploadServer(t, http.StatusOK)
	repo := newTestJDS(t, server.URL, nil)

	artifact := filepath.Join(t.TempDir(), "Firefox.dmg")
	require.NoError(t, os.WriteFile(artifact, []byte("dmg"), 0o644))

	require.NoError(t, repo.CopyPackage(context.Background(), artifact, "42"))
	assert.Equal(t, "42", rec.headers.Get("OBJECT_ID"))
}

func TestCopyScriptUsesScriptFileType(t *testing.T) {
	server, rec := newUploadServer(t, http.StatusOK)
	repo := newTestJDS(t, server.URL, nil)

	artifact := filepath.Join(t.TempDir(), "postinstall.sh")
	require.NoError(t, os.WriteFile(artifact, []byte("#!/bin/sh\n"), 0o644))

	require.NoError(t, repo.CopyScript(context.Background(), artifact, ""))
	assert.Equal(t, "5", rec.headers.Get("FILE_TYPE"),
		"scripts must carry the script discriminator, not the package one")
}

func TestUploadErrorCarriesStatus(t *testing.T) {
	server, _ := newUploadServer(t, http.StatusUnauthorized)
	repo := newTestJDS(t, server.URL, nil)

	artifact := filepath.Join(t.TempDir(), "Firefox.pkg")
	require.NoError(t, os.WriteFile(artifact, []byte("pkg"), 0o644))

	err := repo.CopyPackage(context.Background(), artifact, "")
	require.Error(t, err)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusUnauthorized, upErr.StatusCode)
}

type stubPackageLister struct {
	filenames []string
	err       error
}

func (s *stubPackageLister) PackageFilenames(context.Context) ([]string, error) {
	return s.filenames, s.err
}

func TestExistsUsesPackageListing(t *testing.T) {
	lister := &stubPackageLister{filenames: []string{"Firefox.pkg", "Chrome.dmg"}}
	repo := newTestJDS(t, "https://jss.example.org", lister)
	ctx := context.Background()

	found, err := repo.Exists(ctx, "Chrome.dmg")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Exists(ctx, "Safari.pkg")
	require.NoError(t, err)
	assert.False(t, found)
}

const casperXML = `<?xml version="1.0" encoding="UTF-8"?>
<casper>
  <distributionserver>
    <packages>
      <package><fileURL>https://dp1.example.org/CasperShare/Packages/Firefox.pkg</fileURL></package>
      <package><fileURL>https://dp1.example.org/CasperShare/Packages/Chrome.dmg</fileURL></package>
    </packages>
  </distributionserver>
  <distributionserver>
    <packages>
      <package><fileURL>\\dp2\CasperShare\Packages\Firefox.pkg</fileURL></package>
    </packages>
  </distributionserver>
</casper>`

func TestExistsUsingCasperIntersectsServers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/casper.jxml", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "casperadmin", r.FormValue("username"))

		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(casperXML))
	}))
	t.Cleanup(server.Close)

	repo := newTestJDS(t, server.URL, nil)
	ctx := context.Background()

	// Present on both servers.
	found, err := repo.ExistsUsingCasper(ctx, "Firefox.pkg")
	require.NoError(t, err)
	assert.True(t, found)

	// Still replicating: only on the first server.
	found, err = repo.ExistsUsingCasper(ctx, "Chrome.dmg")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExistsFallsBackToCasper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(casperXML))
	}))
	t.Cleanup(server.Close)

	// No PackageLister configured: Exists goes through casper.jxml.
	repo := newTestJDS(t, server.URL, nil)

	found, err := repo.Exists(context.Background(), "Firefox.pkg")
	require.NoError(t, err)
	assert.True(t, found)
}
