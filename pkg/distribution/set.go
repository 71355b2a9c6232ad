package distribution

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/eahrold/jamfdist/internal/logger"
)

// Set owns an ordered collection of distribution points and fans
// operations out across all of them. Order is insertion order and matters
// only for deterministic reporting; member operations are independent.
//
// Fan-out is strictly sequential and unconditional: a failure on one
// member never prevents attempting the rest, and successful copies are not
// rolled back when a later member fails. Per-member failures are wrapped
// with the member's position and joined into the returned error, so a
// caller that needs partial-failure visibility can unwrap them.
//
// An empty Set is valid; every aggregate operation on it is a no-op.
type Set struct {
	members []Repository
}

// NewSet builds a Set over the given repositories, kept in argument order.
func NewSet(members ...Repository) *Set {
	return &Set{members: members}
}

// Add appends a distribution point to the set.
func (s *Set) Add(r Repository) {
	s.members = append(s.members, r)
}

// Remove drops the distribution point at the given index. Out-of-range
// indexes are ignored.
func (s *Set) Remove(index int) {
	if index < 0 || index >= len(s.members) {
		return
	}
	s.members = append(s.members[:index], s.members[index+1:]...)
}

// Len returns the number of configured distribution points.
func (s *Set) Len() int { return len(s.members) }

// Members returns the repositories in configuration order. The slice is
// shared; treat it as read-only.
func (s *Set) Members() []Repository { return s.members }

// Copy distributes an artifact to every member, routing by file extension:
// packages and disk images go through CopyPackage, everything else through
// CopyScript. targetID is forwarded to backends that support object
// association.
func (s *Set) Copy(ctx context.Context, path, targetID string) error {
	name := filepath.Base(path)
	isPkg := IsPackageName(name)

	var errs []error
	for i, member := range s.members {
		var err error
		if isPkg {
			err = member.CopyPackage(ctx, path, targetID)
		} else {
			err = member.CopyScript(ctx, path, targetID)
		}
		if err != nil {
			logger.Error("copy %s to distribution point %d: %v", name, i, err)
			errs = append(errs, fmt.Errorf("distribution point %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// CopyPackage distributes a package or disk image to every member without
// extension dispatch.
func (s *Set) CopyPackage(ctx context.Context, path, targetID string) error {
	var errs []error
	for i, member := range s.members {
		if err := member.CopyPackage(ctx, path, targetID); err != nil {
			errs = append(errs, fmt.Errorf("distribution point %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// CopyScript distributes a script to every member without extension
// dispatch.
func (s *Set) CopyScript(ctx context.Context, path, targetID string) error {
	var errs []error
	for i, member := range s.members {
		if err := member.CopyScript(ctx, path, targetID); err != nil {
			errs = append(errs, fmt.Errorf("distribution point %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Mount mounts every member that has mount semantics. Members without
// (upload and cloud backends) are silently skipped.
func (s *Set) Mount(ctx context.Context) error {
	var errs []error
	for i, member := range s.members {
		mountable, ok := member.(Mountable)
		if !ok {
			continue
		}
		if err := mountable.Mount(ctx); err != nil {
			errs = append(errs, fmt.Errorf("distribution point %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Unmount unmounts every member that has mount semantics.
func (s *Set) Unmount(ctx context.Context) error {
	var errs []error
	for i, member := range s.members {
		mountable, ok := member.(Mountable)
		if !ok {
			continue
		}
		if err := mountable.Unmount(ctx); err != nil {
			errs = append(errs, fmt.Errorf("distribution point %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Exists reports whether an artifact with the given base filename is
// present on every member: the logical AND over all member checks. Every
// member is always queried, even after a negative result, so diagnostics
// from each backend still surface. Member errors count as "not present"
// for the aggregate result and are joined into the returned error.
func (s *Set) Exists(ctx context.Context, name string) (bool, error) {
	result := true

	var errs []error
	for i, member := range s.members {
		found, err := member.Exists(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("distribution point %d: %w", i, err))
			result = false
			continue
		}
		if !found {
			result = false
		}
	}
	return result, errors.Join(errs...)
}
