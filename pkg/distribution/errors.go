package distribution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownType indicates a repository configuration entry carried a
	// type tag no backend implements.
	ErrUnknownType = errors.New("distribution point type not recognized")

	// ErrNotInInventory indicates a legacy {name, password} entry named a
	// distribution point the server inventory does not know about.
	ErrNotInInventory = errors.New("distribution point not found in server inventory")

	// ErrBundleNotSupported indicates a directory-bundle artifact was
	// given to a backend that can only accept flat files.
	ErrBundleNotSupported = errors.New("bundle artifacts are not supported by this distribution point")
)

// ConfigError reports missing required connection fields for a repository
// type. It is fatal at construction time.
type ConfigError struct {
	// Kind is the repository type the configuration was for, e.g. "AFP".
	Kind string

	// Missing lists the required field names that were absent.
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s distribution point: missing required fields: %s",
		e.Kind, strings.Join(e.Missing, ", "))
}

// MountError wraps a failed mount or unmount invocation. A nonzero exit
// from the OS mount facility is fatal and not retried.
type MountError struct {
	// Op is "mount" or "unmount".
	Op string

	// MountPoint is the local path the operation targeted.
	MountPoint string

	Err error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.MountPoint, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// UploadError reports an HTTP upload that failed or returned a non-success
// status. The response status and body are carried verbatim; uploads are
// not retried.
type UploadError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s failed: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// missingFields returns the names in order whose values are empty.
func missingFields(fields map[string]string, order []string) []string {
	var missing []string
	for _, name := range order {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
