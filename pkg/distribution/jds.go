package distribution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"resty.dev/v3"

	"github.com/eahrold/jamfdist/internal/logger"
)

// dbfileupload file-type discriminators.
const (
	fileTypePackage = "0"
	fileTypeScript  = "5"
)

// newObjectID is the OBJECT_ID sentinel meaning "create a new server-side
// object" rather than associating with an existing one.
const newObjectID = "-1"

// PackageLister is the slice of the management-server API the JDS
// existence check consumes: the filenames of all known package objects.
type PackageLister interface {
	PackageFilenames(ctx context.Context) ([]string, error)
}

// JDSConfig holds the connection settings for a JDS.
type JDSConfig struct {
	// URL is the base URL of the server the JDS uploads through, without
	// a trailing slash.
	URL      string
	Username string
	Password string

	// Packages backs the primary existence check. Optional; without it
	// Exists falls back to the casper.jxml diagnostic feed.
	Packages PackageLister

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// JDSRepository is a distribution point reached only through an HTTP
// upload endpoint. The JDS receives uploaded files and replicates them to
// its managed distribution servers itself; there is no mount semantics and
// no local filesystem presence.
//
// Uploads are not idempotent: repeated uploads without a target ID create
// additional server-side associations.
type JDSRepository struct {
	baseURL   string
	uploadURL string
	username  string
	password  string
	packages  PackageLister
	client    *resty.Client
}

// NewJDS builds a JDS-backed distribution point. The upload URL is derived
// once from the base URL; no I/O happens at construction.
func NewJDS(cfg JDSConfig) (*JDSRepository, error) {
	missing := missingFields(map[string]string{
		"URL":      cfg.URL,
		"username": cfg.Username,
		"password": cfg.Password,
	}, []string{"URL", "username", "password"})
	if len(missing) > 0 {
		return nil, &ConfigError{Kind: "JDS", Missing: missing}
	}

	client := resty.New()
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	}

	base := strings.TrimRight(cfg.URL, "/")
	return &JDSRepository{
		baseURL:   base,
		uploadURL: base + "/dbfileupload",
		username:  cfg.Username,
		password:  cfg.Password,
		packages:  cfg.Packages,
		client:    client,
	}, nil
}

// UploadURL returns the endpoint files are POSTed to.
func (r *JDSRepository) UploadURL() string { return r.uploadURL }

// CopyPackage uploads a package or disk image. targetID associates the
// upload with an existing Package object; empty means create new.
func (r *JDSRepository) CopyPackage(ctx context.Context, path, targetID string) error {
	return r.upload(ctx, path, targetID, fileTypePackage)
}

// CopyScript uploads a script.
//
// Unreliable: the dbfileupload endpoint was not designed for script
// payloads and the server may not faithfully reconstruct the original
// script content. Kept to match upstream behavior; prefer managing scripts
// through the management-server API.
func (r *JDSRepository) CopyScript(ctx context.Context, path, targetID string) error {
	logger.Warn("script upload to a JDS is unreliable; the server may not reconstruct %s faithfully", filepath.Base(path))
	return r.upload(ctx, path, targetID, fileTypeScript)
}

func (r *JDSRepository) upload(ctx context.Context, artifact, targetID, fileType string) error {
	if targetID == "" {
		targetID = newObjectID
	}

	f, err := os.Open(artifact)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	name := filepath.Base(artifact)
	logger.Info("uploading %s to %s (type %s, object %s)", name, r.uploadURL, fileType, targetID)

	// The endpoint expects a form-data body but a text/xml Content-Type;
	// the body is assembled by hand so the header is not rewritten to
	// multipart/form-data at send time.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(name, name)
	if err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Authorization": r.basicAuth(),
			"Content-Type":  "text/xml",
			"DESTINATION":   "1",
			"OBJECT_ID":     targetID,
			"FILE_TYPE":     fileType,
			"FILE_NAME":     name,
		}).
		SetBody(body.Bytes()).
		Post(r.uploadURL)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	//nolint:errcheck
	defer resp.Body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return &UploadError{URL: r.uploadURL, StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	logger.Debug("uploaded %s: status %d", name, resp.StatusCode())
	return nil
}

// basicAuth builds the Authorization header value for the read-write
// account.
func (r *JDSRepository) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(r.username+":"+r.password))
}

// Exists reports whether a file with the given name is known to the JDS.
//
// Best effort, in two policies. The primary policy asks the
// management-server package listing for a filename match, which can return
// a false positive when a Package object exists without an uploaded file.
// Without a PackageLister it falls back to ExistsUsingCasper.
func (r *JDSRepository) Exists(ctx context.Context, name string) (bool, error) {
	if r.packages == nil {
		return r.ExistsUsingCasper(ctx, name)
	}

	filenames, err := r.packages.PackageFilenames(ctx)
	if err != nil {
		return false, fmt.Errorf("list packages: %w", err)
	}

	for _, filename := range filenames {
		if filename == name {
			return true, nil
		}
	}
	return false, nil
}

// ExistsUsingCasper tests membership against the undocumented casper.jxml
// diagnostic feed, which lists each distribution server's package
// inventory. The name must be present on every listed server, so files
// still replicating transiently report false negatives. Unsupported
// interface; subject to change without notice on the server side.
func (r *JDSRepository) ExistsUsingCasper(ctx context.Context, name string) (bool, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": r.username,
			"password": r.password,
		}).
		Post(r.baseURL + "/casper.jxml")
	if err != nil {
		return false, fmt.Errorf("query casper.jxml: %w", err)
	}
	//nolint:errcheck
	defer resp.Body.Close()

	if resp.StatusCode() != http.StatusOK {
		return false, &UploadError{URL: r.baseURL + "/casper.jxml", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var feed casperFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return false, fmt.Errorf("parse casper.jxml: %w", err)
	}

	return feed.allServersHave(name), nil
}

// casperFeed models the casper.jxml response: one element per managed
// distribution server, each listing the packages it holds.
type casperFeed struct {
	XMLName xml.Name       `xml:"casper"`
	Servers []casperServer `xml:"distributionserver"`
}

type casperServer struct {
	Packages []casperPackage `xml:"packages>package"`
}

type casperPackage struct {
	FileURL string `xml:"fileURL"`
}

// allServersHave reports whether every listed server carries name. The
// intersection of per-server filename sets is what makes the check
// meaningful: a file is only distributable once replication finished
// everywhere.
func (f *casperFeed) allServersHave(name string) bool {
	if len(f.Servers) == 0 {
		return false
	}

	for _, server := range f.Servers {
		found := false
		for _, pkg := range server.Packages {
			// fileURLs come back with platform-dependent separators.
			file := path.Base(strings.ReplaceAll(pkg.FileURL, `\`, "/"))
			if file == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
