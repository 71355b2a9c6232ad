// Package distribution synchronizes packages and scripts to the file
// repositories ("distribution points") configured for a Jamf server.
//
// A Set owns an ordered collection of repositories and fans every copy,
// mount, and existence operation out to all of them, so replicating an
// artifact to every configured repository is a single call. Individual
// backends differ in transport and capability:
//
//   - AFP and SMB shares are reached through the OS mount facility and
//     written to as local filesystems (see MountedRepository).
//   - JDS instances accept authenticated multipart uploads and have only
//     best-effort existence checks (see JDSRepository).
//   - Cloud distribution points are object-storage backed (see
//     CDPRepository).
//
// Not every repository supports every method with the same fidelity;
// per-type caveats are documented on the implementations.
package distribution

import (
	"context"
	"path/filepath"
	"strings"
)

// Subdirectory layout shared by file-share and object-storage backends.
const (
	PackagesDir = "Packages"
	ScriptsDir  = "Scripts"
)

// Repository is one configured distribution point.
//
// targetID associates the artifact with an existing server-side object
// where the backend supports it; the empty string means "create new".
// Backends without object association ignore it.
type Repository interface {
	// CopyPackage places a package or disk image artifact on the backend.
	CopyPackage(ctx context.Context, path, targetID string) error

	// CopyScript places a script artifact on the backend. Not every
	// backend supports scripts faithfully; see the implementations.
	CopyScript(ctx context.Context, path, targetID string) error

	// Exists reports whether an artifact with the given base filename is
	// present on the backend. This is a presence check by name, never a
	// content comparison.
	Exists(ctx context.Context, name string) (bool, error)
}

// Mountable is implemented by repositories backed by a network share that
// must be mounted before use. The aggregate checks for this capability by
// type assertion; upload-style backends simply don't implement it.
type Mountable interface {
	Repository

	// Mount attaches the share at the configured mount point. Mounting an
	// already-mounted share is a no-op.
	Mount(ctx context.Context) error

	// Unmount forcibly detaches the share. Callers asking for an unmount
	// are assumed to want it regardless of open handles. Unmounting a
	// share that is not mounted is a no-op.
	Unmount(ctx context.Context) error

	// IsMounted queries the OS mount table for the configured mount point.
	IsMounted() (bool, error)
}

// IsPackageName reports whether the filename carries a package extension.
// Packages and disk images go to Packages/, everything else to Scripts/.
func IsPackageName(name string) bool {
	switch strings.ToUpper(filepath.Ext(name)) {
	case ".PKG", ".DMG":
		return true
	}
	return false
}

// artifactDir returns the subdirectory an artifact belongs in, dispatched
// by file extension.
func artifactDir(name string) string {
	if IsPackageName(name) {
		return PackagesDir
	}
	return ScriptsDir
}
