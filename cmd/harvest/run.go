package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/fiapx/fiapx-album-harvester/internal/frames"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/bunkr"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/progress"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-album-harvester/internal/usecase"
	"github.com/fiapx/fiapx-album-harvester/pkg/logger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

type settings struct {
	urls       []string
	opts       usecase.AlbumOptions
	output     string
	statusPage string
	logLevel   string
}

type queueSettings struct {
	url         string
	exchange    string
	notifyEmail string
}

func settingsFrom(cmd *cli.Command) (settings, error) {
	s := settings{
		output:     cmd.String("output"),
		statusPage: cmd.String("status-page"),
		logLevel:   cmd.String("log-level"),
	}

	s.urls = cmd.Args().Slice()
	if len(s.urls) == 0 {
		urls, err := readURLs(cmd.String("urls-file"))
		if err != nil {
			return s, err
		}
		s.urls = urls
	}
	if len(s.urls) == 0 {
		return s, errors.New("no album URLs given")
	}

	opts := usecase.DefaultAlbumOptions()
	if n := cmd.Int("workers"); n != 0 {
		opts.MaxWorkers = n
	}
	if n := cmd.Int("retries"); n != 0 {
		opts.Retries = n
	}
	opts.ExtractFrames = cmd.Bool("extract-frames")
	if n := cmd.Int("frames-per-video"); n != 0 {
		opts.FramesPerVideo = &n
	}
	if cmd.IsSet("min-quality") {
		q := cmd.Float64("min-quality")
		opts.MinQuality = &q
	}
	if cmd.IsSet("candidate-multiplier") {
		m := cmd.Float64("candidate-multiplier")
		opts.CandidateMultiplier = &m
	}
	opts.Filter = entity.NameFilter{Include: cmd.StringSlice("include"), Ignore: cmd.StringSlice("ignore")}
	if err := opts.Validate(); err != nil {
		return s, err
	}
	s.opts = opts
	return s, nil
}

// readURLs returns the non-blank lines of path; lines starting with '#' are
// comments.
func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("no album URLs given and %s is not readable: %w", path, err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return urls, nil
}

// harvest downloads the albums one after another. A failed album does not
// stop the next one.
func harvest(ctx context.Context, s settings) error {
	log, err := logger.NewConsole(s.logLevel)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer log.Sync()

	client := &http.Client{Timeout: 30 * time.Second}
	hosts, err := bunkr.FetchHostStatus(ctx, client, s.statusPage)
	if err != nil {
		log.Warn("host status unavailable", zap.Error(err))
		hosts = bunkr.NewHostStatus(nil)
	}

	reporter := progress.NewBarReporter(os.Stderr)
	defer reporter.Finish()

	var extractor usecase.FrameExtractor
	if s.opts.ExtractFrames {
		grabber := ffmpeg.NewGrabber(log)
		ex, err := frames.NewExtractor(grabber, grabber, grabber, frames.DefaultOptions(), log)
		if err != nil {
			return err
		}
		extractor = ex
		s.opts.Headers = bunkr.FFmpegHeaders()
	}

	albums, err := usecase.NewAlbumDownloader(
		bunkr.NewResolver(client, log),
		bunkr.NewDownloader(client, hosts, reporter, log),
		extractor, reporter, log, s.opts,
	)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	failed := 0
	for _, u := range s.urls {
		report, err := albums.Run(ctx, u, s.output)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if errors.Is(err, frames.ErrToolMissing) {
				return cli.Exit(err.Error(), 1)
			}
			log.Error("album failed", zap.String("url", u), zap.Error(err))
			failed++
			continue
		}
		printSummary(os.Stdout, u, report)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d albums failed", failed, len(s.urls)), 1)
	}
	return nil
}

func printSummary(w io.Writer, u string, r *usecase.AlbumReport) {
	fmt.Fprintf(w, "\n%s -> %s\n", u, r.Dir)
	fmt.Fprintf(w, "  downloaded %d, extracted %d (%d frames), skipped %d, failed %d\n",
		r.Downloaded, r.Extracted, r.FramesSaved, r.Skipped, r.Failed)
	for _, f := range r.PermanentFailures {
		fmt.Fprintf(w, "  failed: %s (%s)\n", f.Filename, f.DownloadLink)
	}
}

// requestsFor builds one worker request per album URL.
func requestsFor(s settings, q queueSettings) []entity.AlbumRequestMessage {
	out := make([]entity.AlbumRequestMessage, 0, len(s.urls))
	for _, u := range s.urls {
		out = append(out, entity.AlbumRequestMessage{
			JobID:               uuid.New(),
			AlbumURL:            u,
			ExtractFrames:       s.opts.ExtractFrames,
			FramesPerVideo:      s.opts.FramesPerVideo,
			MinQuality:          s.opts.MinQuality,
			CandidateMultiplier: s.opts.CandidateMultiplier,
			Include:             s.opts.Filter.Include,
			Ignore:              s.opts.Filter.Ignore,
			NotifyEmail:         q.notifyEmail,
		})
	}
	return out
}

func enqueue(ctx context.Context, s settings, q queueSettings) error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	err = rabbitmq.DeclareTopology(ch, rabbitmq.Topology{
		Exchange:    q.exchange,
		Queue:       "album.requests",
		DLQ:         "album.requests.dlq",
		StatusQueue: "album.status",
	})
	ch.Close()
	if err != nil {
		return err
	}

	pub, err := rabbitmq.NewPublisher(conn, q.exchange)
	if err != nil {
		return err
	}
	defer pub.Close()

	for _, msg := range requestsFor(s, q) {
		body, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := pub.PublishRequest(ctx, body); err != nil {
			return fmt.Errorf("publish %s: %w", msg.AlbumURL, err)
		}
		fmt.Printf("%s %s\n", msg.JobID, msg.AlbumURL)
	}
	return nil
}
