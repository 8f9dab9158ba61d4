package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
	"github.com/fiapx/fiapx-album-harvester/internal/frames"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/bunkr"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/config"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/email"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-album-harvester/internal/infra/minio"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/postgres"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/progress"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/tracing"
	"github.com/fiapx/fiapx-album-harvester/internal/usecase"
	"github.com/fiapx/fiapx-album-harvester/migrations"
	"github.com/fiapx/fiapx-album-harvester/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const serviceName = "fiapx-album-harvester"

var version = "dev"

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting "+serviceName, zap.String("version", version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, serviceName, version)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	applied, err := postgres.RunMigrations(ctx, pool, migrations.FS)
	fatalOnErr(err, "run migrations")
	if len(applied) > 0 {
		log.Info("migrations applied", zap.Strings("files", applied))
	}

	// MinIO; without it album outputs stay under DOWNLOAD_DIR
	var storage port.ArchiveStorage
	if cfg.MinIOEnabled {
		s, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			UseSSL:        cfg.MinIOUseSSL,
			AlbumBucket:   cfg.MinIOAlbumBucket,
			ArchiveBucket: cfg.MinIOArchiveBucket,
		})
		fatalOnErr(err, "create minio storage")
		fatalOnErr(s.EnsureBuckets(ctx), "ensure minio buckets")
		storage = s
	}

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Album pipeline adapters
	client := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSecs) * time.Second}
	hosts, err := bunkr.FetchHostStatus(ctx, client, cfg.StatusPageURL)
	if err != nil {
		log.Warn("host status unavailable, assuming all hosts online", zap.Error(err))
		hosts = bunkr.NewHostStatus(nil)
	} else if offline := hosts.Offline(); len(offline) > 0 {
		log.Warn("offline hosts", zap.Any("hosts", offline))
	}

	reporter := progress.NewLogReporter(log)
	resolver := bunkr.NewResolver(client, log)
	downloader := bunkr.NewDownloader(client, hosts, reporter, log)

	grabber := ffmpeg.NewGrabber(log)
	extractor, err := frames.NewExtractor(grabber, grabber, grabber, frameOptions(cfg), log)
	fatalOnErr(err, "create frame extractor")

	runners := func(opts usecase.AlbumOptions) (usecase.AlbumRunner, error) {
		return usecase.NewAlbumDownloader(resolver, downloader, extractor, reporter, log, opts)
	}

	repo := postgres.NewAlbumJobRepository(pool)
	zipper := ffmpeg.NewZipCreator()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewProcessAlbumUseCase(
		repo, storage, zipper,
		statusPub, dlqPub, notifier,
		runners,
		log,
		usecase.ProcessAlbumConfig{
			DownloadDir:      cfg.DownloadDir,
			MaxRetries:       cfg.MaxRetries,
			Defaults:         albumDefaults(cfg),
			ArchiveRawAlbums: cfg.ArchiveRawAlbums,
			NotificationTo:   cfg.NotificationTo,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, pool.Ping, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL: cfg.RabbitMQURL,
		Topology: rabbitmq.Topology{
			Exchange:    cfg.RabbitMQExchange,
			Queue:       cfg.RabbitMQRequestQueue,
			DLQ:         cfg.RabbitMQDLQ,
			StatusQueue: cfg.RabbitMQStatusQueue,
		},
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info(serviceName+" started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info(serviceName + " stopped")
}

func frameOptions(cfg *config.Config) frames.Options {
	opts := frames.DefaultOptions()
	opts.MinQuality = cfg.FramesMinQuality
	opts.CandidateMultiplier = cfg.CandidateMultiplier
	opts.MaxCandidates = cfg.MaxCandidates
	opts.MinHamming = cfg.MinHamming
	opts.JPEGQuality = cfg.JPEGQuality
	return opts
}

func albumDefaults(cfg *config.Config) usecase.AlbumOptions {
	opts := usecase.DefaultAlbumOptions()
	opts.MaxWorkers = cfg.AlbumMaxWorkers
	opts.Retries = cfg.DownloadRetries
	opts.Filter = entity.NameFilter{Include: cfg.DefaultInclude, Ignore: cfg.DefaultIgnore}
	opts.Headers = bunkr.FFmpegHeaders()
	if cfg.FramesPerVideo > 0 {
		n := cfg.FramesPerVideo
		opts.FramesPerVideo = &n
	}
	return opts
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
