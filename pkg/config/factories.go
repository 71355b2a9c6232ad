package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/eahrold/jamfdist/internal/logger"
	"github.com/eahrold/jamfdist/pkg/distribution"
)

// Collaborators are the external services the factories may need while
// building a Set. All fields are optional; a nil collaborator disables the
// configurations that depend on it.
type Collaborators struct {
	// Inventory backs legacy {name, password} resolution.
	Inventory distribution.InventoryLister

	// Packages backs the JDS primary existence check.
	Packages distribution.PackageLister

	// Mounter overrides the OS mount facility for share-backed entries.
	Mounter distribution.Mounter
}

// CreateSet builds a distribution.Set from the configured repository
// entries, in configuration order. Each entry selects a backend by its
// explicit type tag; entries without one take the deprecated legacy
// resolution path. An unrecognized tag or an unresolvable legacy entry is
// a fatal configuration error.
func CreateSet(ctx context.Context, cfg *Config, deps Collaborators) (*distribution.Set, error) {
	set := distribution.NewSet()

	for i, entry := range cfg.Repos {
		repo, err := createRepository(ctx, entry, deps)
		if err != nil {
			return nil, fmt.Errorf("repos[%d]: %w", i, err)
		}
		set.Add(repo)
	}

	logger.Debug("configured %d distribution point(s)", set.Len())
	return set, nil
}

func createRepository(ctx context.Context, entry RepoConfig, deps Collaborators) (distribution.Repository, error) {
	switch entry.Type {
	case "AFP":
		return createAFP(entry, deps.Mounter)
	case "SMB":
		return createSMB(entry, deps.Mounter)
	case "JDS":
		return createJDS(entry, deps.Packages)
	case "CDP":
		return createCDP(ctx, entry)
	case "":
		if deps.Inventory == nil {
			return nil, fmt.Errorf("legacy entry %q needs a server inventory to resolve against", entry.Name)
		}
		logger.Warn("repo %q uses deprecated by-name resolution; declare an explicit type instead", entry.Name)
		return distribution.ResolveLegacy(ctx, deps.Inventory, entry.Name, entry.Password, deps.Mounter)
	default:
		return nil, fmt.Errorf("%q: %w", entry.Type, distribution.ErrUnknownType)
	}
}

// shareOptions are the connection fields shared by AFP and SMB entries,
// named as they appear in the configuration file.
type shareOptions struct {
	URL        string `mapstructure:"URL"`
	Port       string `mapstructure:"share_port"`
	ShareName  string `mapstructure:"share_name"`
	MountPoint string `mapstructure:"mount_point"`
	Domain     string `mapstructure:"workgroup_or_domain"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	NoBrowse   bool   `mapstructure:"nobrowse"`
}

func decodeShareOptions(entry RepoConfig) (shareOptions, error) {
	var opts shareOptions
	if err := mapstructure.Decode(entry.Options, &opts); err != nil {
		return opts, fmt.Errorf("failed to decode share options: %w", err)
	}

	// The entry-level password is a fallback, mirroring legacy entries.
	if opts.Password == "" {
		opts.Password = entry.Password
	}

	// The conventional mount point is derived from the advertised name
	// and share, spaces removed.
	if opts.MountPoint == "" && entry.Name != "" && opts.ShareName != "" {
		opts.MountPoint = filepath.Join("/Volumes",
			strings.ReplaceAll(entry.Name+opts.ShareName, " ", ""))
	}

	return opts, nil
}

func createAFP(entry RepoConfig, mounter distribution.Mounter) (distribution.Repository, error) {
	opts, err := decodeShareOptions(entry)
	if err != nil {
		return nil, err
	}

	return distribution.NewAFP(distribution.AFPConfig{
		Address:    opts.URL,
		Port:       opts.Port,
		ShareName:  opts.ShareName,
		MountPoint: opts.MountPoint,
		Username:   opts.Username,
		Password:   opts.Password,
		NoBrowse:   opts.NoBrowse,
		Mounter:    mounter,
	})
}

func createSMB(entry RepoConfig, mounter distribution.Mounter) (distribution.Repository, error) {
	opts, err := decodeShareOptions(entry)
	if err != nil {
		return nil, err
	}

	// If the port isn't given, assume the SMB standard.
	if opts.Port == "" {
		opts.Port = DefaultSMBPort
	}

	return distribution.NewSMB(distribution.SMBConfig{
		Address:    opts.URL,
		Port:       opts.Port,
		ShareName:  opts.ShareName,
		MountPoint: opts.MountPoint,
		Domain:     opts.Domain,
		Username:   opts.Username,
		Password:   opts.Password,
		NoBrowse:   opts.NoBrowse,
		Mounter:    mounter,
	})
}

func createJDS(entry RepoConfig, packages distribution.PackageLister) (distribution.Repository, error) {
	type jdsOptions struct {
		URL      string `mapstructure:"URL"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	}

	var opts jdsOptions
	if err := mapstructure.Decode(entry.Options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode JDS options: %w", err)
	}
	if opts.Password == "" {
		opts.Password = entry.Password
	}

	return distribution.NewJDS(distribution.JDSConfig{
		URL:      opts.URL,
		Username: opts.Username,
		Password: opts.Password,
		Packages: packages,
	})
}

// createCDP builds the S3 client for a cloud distribution point and hands
// it to the backend. The bucket must already exist.
func createCDP(ctx context.Context, entry RepoConfig) (distribution.Repository, error) {
	type cdpOptions struct {
		Bucket          string `mapstructure:"bucket"`
		Region          string `mapstructure:"region"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
	}

	var opts cdpOptions
	if err := mapstructure.Decode(entry.Options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode CDP options: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("CDP entry: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("CDP entry: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// Custom endpoint support for S3-compatible storage.
	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for MinIO and friends.
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	logger.Info("cloud distribution point: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return distribution.NewCDP(distribution.CDPConfig{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
}
