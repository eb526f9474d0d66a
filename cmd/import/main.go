// Command import loads books from a CSV file into the catalog. The file is
// read from disk, or from the MINIO_BUCKET bucket when -object is given.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ayush/bookreview/internal/catalog"
	"github.com/ayush/bookreview/internal/config"
	"github.com/ayush/bookreview/internal/logging"
	"github.com/ayush/bookreview/internal/store"
)

func main() {
	file := flag.String("file", "books.csv", "path of the CSV file")
	object := flag.String("object", "", "object key in the MinIO bucket; overrides -file")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "console")
		log.Fatal().Err(err).Msg("config")
	}
	logging.Init(cfg.LogLevel, "console")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := openSource(ctx, cfg, *file, *object)
	if err != nil {
		log.Fatal().Err(err).Msg("open catalog")
	}
	defer src.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	defer pool.Close()
	pgStore := store.NewPostgresStore(pool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres migrate")
	}

	res, err := catalog.NewLoader(pgStore).Load(ctx, src, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("import")
	}
	log.Info().
		Int("read", res.Read).
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Bool("dry_run", *dryRun).
		Msg("import finished")
}

func openSource(ctx context.Context, cfg *config.Config, file, object string) (io.ReadCloser, error) {
	if object == "" {
		return os.Open(file)
	}
	m := cfg.Minio
	objects, err := store.NewMinioStore(ctx, m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL)
	if err != nil {
		return nil, err
	}
	return objects.Open(ctx, object)
}
