package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/eahrold/jamfdist/internal/logger"
	"github.com/eahrold/jamfdist/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: "+config.GetDefaultConfigPath()+")")
	copyPath := flag.String("copy", "", "distribute the given package or script to all configured distribution points")
	targetID := flag.String("id", "", "server-side object ID to associate an upload with (default: create new)")
	existsName := flag.String("exists", "", "check whether the named artifact is present on all distribution points")
	mount := flag.Bool("mount", false, "mount all share-backed distribution points")
	unmount := flag.Bool("umount", false, "unmount all share-backed distribution points")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jamfdist: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)

	ctx := context.Background()

	// The management-server API collaborators (inventory, package
	// listing) are not wired from the CLI; legacy entries and the JDS
	// primary existence check need a calling program that supplies them.
	set, err := config.CreateSet(ctx, cfg, config.Collaborators{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "jamfdist: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *copyPath != "":
		if err := set.Copy(ctx, *copyPath, *targetID); err != nil {
			fmt.Fprintf(os.Stderr, "jamfdist: %v\n", err)
			os.Exit(1)
		}
		logger.Info("distributed %s to %d distribution point(s)", *copyPath, set.Len())

	case *existsName != "":
		found, err := set.Exists(ctx, *existsName)
		if err != nil {
			logger.Warn("existence check reported errors: %v", err)
		}
		fmt.Println(found)
		if !found {
			os.Exit(1)
		}

	case *mount:
		if err := set.Mount(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "jamfdist: %v\n", err)
			os.Exit(1)
		}

	case *unmount:
		if err := set.Unmount(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "jamfdist: %v\n", err)
			os.Exit(1)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}
