package distribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMBMissingFields(t *testing.T) {
	_, err := NewSMB(SMBConfig{})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SMB", cfgErr.Kind)
	assert.Equal(t, []string{"URL", "share_name", "mount_point", "username", "password"}, cfgErr.Missing)
}

func TestSMBMountURLWithDomain(t *testing.T) {
	repo, err := NewSMB(SMBConfig{
		Address:    "repo.example.org",
		Port:       "139",
		ShareName:  "CasperShare",
		MountPoint: "/Volumes/CasperShare",
		Domain:     "CORP",
		Username:   "rw",
		Password:   "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "//CORP;rw:secret@repo.example.org:139/CasperShare", repo.MountURL())
	assert.Equal(t, "SMB", repo.Kind())
}

func TestSMBMountURLWithoutDomain(t *testing.T) {
	repo, err := NewSMB(SMBConfig{
		Address:    "repo.example.org",
		ShareName:  "CasperShare",
		MountPoint: "/Volumes/CasperShare",
		Username:   "rw",
		Password:   "p@ss",
	})
	require.NoError(t, err)

	assert.Equal(t, "//rw:p%40ss@repo.example.org/CasperShare", repo.MountURL())
}

func TestSMBAnonymousURL(t *testing.T) {
	// Without credentials validation fails, but URL construction itself
	// must still produce a valid anonymous form.
	url := buildSMBURL(SMBConfig{
		Address:   "repo.example.org",
		ShareName: "Public",
		Domain:    "CORP",
	})
	assert.Equal(t, "//repo.example.org/Public", url)
}
