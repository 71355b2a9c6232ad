package distribution

import "fmt"

// SMBConfig holds the connection settings for an SMB share. Domain is
// optional; when present it is prefixed onto the authority as
// "domain;user". Port is optional and defaults to the SMB standard at the
// configuration layer.
type SMBConfig struct {
	Address    string
	Port       string
	ShareName  string
	MountPoint string
	Domain     string
	Username   string
	Password   string
	NoBrowse   bool

	// Mounter overrides the OS mount facility, mainly for tests. Nil
	// selects ExecMounter.
	Mounter Mounter
}

// NewSMB builds an SMB-backed distribution point.
func NewSMB(cfg SMBConfig) (*MountedRepository, error) {
	missing := missingFields(map[string]string{
		"URL":         cfg.Address,
		"share_name":  cfg.ShareName,
		"mount_point": cfg.MountPoint,
		"username":    cfg.Username,
		"password":    cfg.Password,
	}, []string{"URL", "share_name", "mount_point", "username", "password"})
	if len(missing) > 0 {
		return nil, &ConfigError{Kind: "SMB", Missing: missing}
	}

	return &MountedRepository{
		kind:       "SMB",
		protocol:   "smbfs",
		mountURL:   buildSMBURL(cfg),
		mountPoint: cfg.MountPoint,
		noBrowse:   cfg.NoBrowse,
		mounter:    orExecMounter(cfg.Mounter),
	}, nil
}

// buildSMBURL assembles //domain;user:password@host:port/share, the form
// mount_smbfs expects. The domain prefix is added only when a domain is
// configured and credentials are present.
func buildSMBURL(cfg SMBConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, escapePassword(cfg.Password))
		if cfg.Domain != "" {
			auth = fmt.Sprintf("%s;%s", cfg.Domain, auth)
		}
	}

	var port string
	if cfg.Port != "" {
		port = ":" + cfg.Port
	}

	return fmt.Sprintf("//%s%s%s/%s", auth, cfg.Address, port, cfg.ShareName)
}
