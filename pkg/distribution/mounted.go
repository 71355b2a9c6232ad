package distribution

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/eahrold/jamfdist/internal/logger"
)

// Mounter abstracts the OS mount facility so share-backed repositories can
// be exercised without touching the real mount table.
type Mounter interface {
	// Mount attaches a share. A nonzero exit from the underlying
	// invocation must be returned as an error.
	Mount(ctx context.Context, protocol, mountURL, mountPoint string, nobrowse bool) error

	// Unmount forcibly detaches the share at mountPoint.
	Unmount(ctx context.Context, mountPoint string) error

	// IsMounted reports whether mountPoint currently appears in the OS
	// mount table.
	IsMounted(mountPoint string) (bool, error)
}

// ExecMounter is the default Mounter. It shells out to mount(8)/umount(8)
// the same way an administrator would.
type ExecMounter struct{}

func (ExecMounter) Mount(ctx context.Context, protocol, mountURL, mountPoint string, nobrowse bool) error {
	args := []string{"-t", protocol}
	if nobrowse {
		args = append(args, "-o", "nobrowse")
	}
	args = append(args, mountURL, mountPoint)

	cmd := exec.CommandContext(ctx, "mount", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mount exited: %w: %s", err, out)
	}
	return nil
}

func (ExecMounter) Unmount(ctx context.Context, mountPoint string) error {
	// Forced on purpose: a caller explicitly asking for an unmount wants
	// it regardless of open handles.
	cmd := exec.CommandContext(ctx, "umount", "-f", mountPoint)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("umount exited: %w: %s", err, out)
	}
	return nil
}

// IsMounted compares the device ID of the mount point with its parent
// directory. A mount point sits on a different device than its parent.
func (ExecMounter) IsMounted(mountPoint string) (bool, error) {
	fi, err := os.Stat(mountPoint)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	parent, err := os.Stat(filepath.Dir(mountPoint))
	if err != nil {
		return false, err
	}

	st, ok := fi.Sys().(*syscall.Stat_t)
	pst, pok := parent.Sys().(*syscall.Stat_t)
	if !ok || !pok {
		return false, fmt.Errorf("stat %s: no device information", mountPoint)
	}

	return st.Dev != pst.Dev, nil
}

// MountedRepository is a distribution point backed by a network file share.
// The share is attached through the OS mount facility and artifacts are
// written into Packages/ and Scripts/ beneath the mount point.
//
// Mount state belongs to the OS, not to this object: IsMounted always asks
// the mount table, and copies mount on demand. Concurrent runs against the
// same mount point from other processes are not coordinated here.
type MountedRepository struct {
	kind       string // "AFP" or "SMB", for error reporting
	protocol   string // mount -t argument
	mountURL   string // derived once at construction
	mountPoint string
	noBrowse   bool
	mounter    Mounter
}

// Kind returns the repository type tag, e.g. "AFP".
func (r *MountedRepository) Kind() string { return r.kind }

// MountURL returns the access URL derived from the connection settings,
// including embedded credentials when configured.
func (r *MountedRepository) MountURL() string { return r.mountURL }

// MountPoint returns the local directory the share attaches to.
func (r *MountedRepository) MountPoint() string { return r.mountPoint }

// Mount attaches the share. Already mounted is a no-op. The mount point
// directory is created if it does not exist.
func (r *MountedRepository) Mount(ctx context.Context) error {
	mounted, err := r.IsMounted()
	if err != nil {
		return &MountError{Op: "mount", MountPoint: r.mountPoint, Err: err}
	}
	if mounted {
		logger.Debug("%s already mounted at %s", r.kind, r.mountPoint)
		return nil
	}

	if err := os.MkdirAll(r.mountPoint, 0o755); err != nil {
		return &MountError{Op: "mount", MountPoint: r.mountPoint, Err: err}
	}

	logger.Info("mounting %s share at %s", r.kind, r.mountPoint)
	if err := r.mounter.Mount(ctx, r.protocol, r.mountURL, r.mountPoint, r.noBrowse); err != nil {
		return &MountError{Op: "mount", MountPoint: r.mountPoint, Err: err}
	}
	return nil
}

// Unmount forcibly detaches the share. Not mounted is a no-op.
func (r *MountedRepository) Unmount(ctx context.Context) error {
	mounted, err := r.IsMounted()
	if err != nil {
		return &MountError{Op: "unmount", MountPoint: r.mountPoint, Err: err}
	}
	if !mounted {
		return nil
	}

	logger.Info("unmounting %s", r.mountPoint)
	if err := r.mounter.Unmount(ctx, r.mountPoint); err != nil {
		return &MountError{Op: "unmount", MountPoint: r.mountPoint, Err: err}
	}
	return nil
}

// IsMounted queries the OS mount table for the configured mount point.
func (r *MountedRepository) IsMounted() (bool, error) {
	return r.mounter.IsMounted(r.mountPoint)
}

// CopyPackage copies a package or disk image into the Packages
// subdirectory, mounting the share first if needed. targetID is ignored;
// file shares have no object association.
func (r *MountedRepository) CopyPackage(ctx context.Context, path, _ string) error {
	return r.copy(ctx, path, PackagesDir)
}

// CopyScript copies a script into the Scripts subdirectory, mounting the
// share first if needed.
func (r *MountedRepository) CopyScript(ctx context.Context, path, _ string) error {
	return r.copy(ctx, path, ScriptsDir)
}

// copy places the artifact under subdir using its base filename. Whether
// the artifact is a directory bundle or a flat file is detected from the
// local source, not guessed from its extension.
func (r *MountedRepository) copy(ctx context.Context, path, subdir string) error {
	mounted, err := r.IsMounted()
	if err != nil {
		return err
	}
	if !mounted {
		if err := r.Mount(ctx); err != nil {
			return err
		}
	}

	src, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	dest := filepath.Join(r.mountPoint, subdir, filepath.Base(src))

	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat artifact %s: %w", src, err)
	}

	logger.Debug("copying %s to %s", src, dest)
	if fi.IsDir() {
		return copyTree(src, dest)
	}
	return copyFile(src, dest)
}

// Exists reports whether an artifact with the given base filename is
// present on the share, dispatched by extension into Packages or Scripts.
// Plain path presence, no content comparison. The share is not mounted on
// demand here; an unmounted share reports false.
func (r *MountedRepository) Exists(_ context.Context, name string) (bool, error) {
	dest := filepath.Join(r.mountPoint, artifactDir(name), name)
	if _, err := os.Stat(dest); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
