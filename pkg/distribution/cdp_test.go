package distribution

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 stores objects in a map instead of talking to S3.
type fakeS3 struct {
	objects map[string][]byte
	heads   []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.heads = append(f.heads, *in.Key)
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func newTestCDP(t *testing.T, client S3Client) *CDPRepository {
	t.Helper()

	repo, err := NewCDP(CDPConfig{
		Client:    client,
		Bucket:    "jamf-artifacts",
		KeyPrefix: "jamf/",
	})
	require.NoError(t, err)
	return repo
}

func TestNewCDPMissingFields(t *testing.T) {
	_, err := NewCDP(CDPConfig{})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "CDP", cfgErr.Kind)
	assert.Equal(t, []string{"bucket", "client"}, cfgErr.Missing)
}

func TestCDPCopyPackageKey(t *testing.T) {
	client := newFakeS3()
	repo := newTestCDP(t, client)

	artifact := filepath.Join(t.TempDir(), "Firefox.dmg")
	require.NoError(t, os.WriteFile(artifact, []byte("dmg bytes"), 0o644))

	require.NoError(t, repo.CopyPackage(context.Background(), artifact, ""))
	assert.Equal(t, []byte("dmg bytes"), client.objects["jamf/Packages/Firefox.dmg"])
}

func TestCDPCopyScriptKey(t *testing.T) {
	client := newFakeS3()
	repo := newTestCDP(t, client)

	artifact := filepath.Join(t.TempDir(), "cleanup.sh")
	require.NoError(t, os.WriteFile(artifact, []byte("#!/bin/sh\n"), 0o644))

	require.NoError(t, repo.CopyScript(context.Background(), artifact, ""))
	assert.Contains(t, client.objects, "jamf/Scripts/cleanup.sh")
}

func TestCDPRejectsBundles(t *testing.T) {
	repo := newTestCDP(t, newFakeS3())

	bundle := filepath.Join(t.TempDir(), "Office.pkg")
	require.NoError(t, os.MkdirAll(bundle, 0o755))

	err := repo.CopyPackage(context.Background(), bundle, "")
	require.ErrorIs(t, err, ErrBundleNotSupported)
}

func TestCDPExistsDispatchesByExtension(t *testing.T) {
	client := newFakeS3()
	client.objects["jamf/Packages/Firefox.dmg"] = []byte("dmg")
	repo := newTestCDP(t, client)
	ctx := context.Background()

	found, err := repo.Exists(ctx, "Firefox.dmg")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Exists(ctx, "cleanup.sh")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []string{"jamf/Packages/Firefox.dmg", "jamf/Scripts/cleanup.sh"}, client.heads)
}
