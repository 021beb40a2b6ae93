// Command s3-sync-meta re-applies the current metadata settings to every
// object stored by one storage variant, without re-uploading content.
//
// Run with:
//
//	AWS_S3_BUCKET_NAME=media s3-sync-meta --config settings.yaml --values overrides.yaml static
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/koustreak/s3storage/internal/config"
	"github.com/koustreak/s3storage/internal/logger"
	"github.com/koustreak/s3storage/internal/settings"
)

const usage = "usage: s3-sync-meta [flags] <storage>\n\n<storage> is one of: default, media, static\n\nflags:\n"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("s3-sync-meta", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	variant, err := settings.ParseVariant(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "s3-sync-meta: %v\n", err)
		return 1
	}

	cfg, err := config.Load(config.ConfigPath(fs), fs)
	if err != nil {
		fmt.Fprintf(stderr, "s3-sync-meta: %v\n", err)
		return 1
	}
	cfg.Log.Output = stderr
	log := logger.New(cfg.Log).With().
		Str("storage", variant.String()).
		Str("backend", string(cfg.Backend)).
		Logger()

	st, err := cfg.Open(ctx, variant, nil, log)
	if err != nil {
		log.ErrorWith("failed to open storage", err, nil)
		return 1
	}

	n, err := st.SyncMeta(ctx)
	if err != nil {
		log.ErrorWith("metadata sync failed", err, map[string]any{"synced": n})
		return 1
	}

	fmt.Fprintf(stdout, "synced metadata of %d objects\n", n)
	return 0
}
