package distribution

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// InventoryRecord is one known distribution point as reported by the
// management server: enough to auto-configure an AFP or SMB share, short
// of the read-write password which never leaves the server.
type InventoryRecord struct {
	Name              string
	Address           string
	ConnectionType    string // "AFP" or "SMB"
	ShareName         string
	Domain            string
	Port              string
	ReadWriteUsername string
}

// InventoryLister is the slice of the management-server API the legacy
// resolution path consumes: the live inventory of known distribution
// points.
type InventoryLister interface {
	DistributionPoints(ctx context.Context) ([]InventoryRecord, error)
}

// ResolveLegacy resolves a {name, password} configuration entry against
// the server inventory and builds the matching share-backed repository.
// The mount point defaults to /Volumes/<name><share> with spaces removed,
// matching what the web interface advertises.
//
// Deprecated: fully specify the connection settings per distribution point
// instead. This path exists for configurations predating explicit type
// tags and only covers AFP and SMB.
func ResolveLegacy(ctx context.Context, inv InventoryLister, name, password string, mounter Mounter) (Repository, error) {
	records, err := inv.DistributionPoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("query distribution point inventory: %w", err)
	}

	for _, record := range records {
		if record.Name != name {
			continue
		}

		mountPoint := filepath.Join("/Volumes",
			strings.ReplaceAll(record.Name+record.ShareName, " ", ""))

		switch record.ConnectionType {
		case "AFP":
			return NewAFP(AFPConfig{
				Address:    record.Address,
				Port:       record.Port,
				ShareName:  record.ShareName,
				MountPoint: mountPoint,
				Username:   record.ReadWriteUsername,
				Password:   password,
				Mounter:    mounter,
			})
		case "SMB":
			return NewSMB(SMBConfig{
				Address:    record.Address,
				Port:       record.Port,
				ShareName:  record.ShareName,
				MountPoint: mountPoint,
				Domain:     record.Domain,
				Username:   record.ReadWriteUsername,
				Password:   password,
				Mounter:    mounter,
			})
		default:
			return nil, fmt.Errorf("inventory entry %q has connection type %q: %w",
				name, record.ConnectionType, ErrUnknownType)
		}
	}

	return nil, fmt.Errorf("%q: %w", name, ErrNotInInventory)
}
