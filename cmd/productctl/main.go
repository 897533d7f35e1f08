// Command productctl sends identifier files to a productd instance and
// manages the shared browser-session credentials.
//
// Usage:
//
//	productctl [flags] fetch          run a batch from -ids and save the result
//	productctl [flags] single NVMID   fetch one identifier
//	productctl [flags] push-creds     store -cookies in Redis for other callers
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/scorebill/productfetch/internal/config"
	"github.com/scorebill/productfetch/internal/httpapi"
	"github.com/scorebill/productfetch/pkg/batch"
	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/logging"
)

// previewCount is how many successes and failures the summary lists.
const previewCount = 5

type options struct {
	server      string
	idsPath     string
	cookiesPath string
	source      string
	outDir      string
	concurrency int
	timeout     time.Duration
	ttl         time.Duration
}

func main() {
	var (
		configPath string
		opts       options
	)
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.StringVar(&opts.server, "server", envOr("PRODUCTD_URL", "http://localhost:8080"), "productd base URL")
	flag.StringVar(&opts.idsPath, "ids", "nvmids.txt", "identifier file, one per line")
	flag.StringVar(&opts.cookiesPath, "cookies", "", "browser-session file (default credentials.file from config)")
	flag.StringVar(&opts.source, "source", "file", "credential source: file or redis")
	flag.StringVar(&opts.outDir, "out", ".", "directory for the result JSON")
	flag.IntVar(&opts.concurrency, "concurrency", 0, "concurrency hint sent to the server (0 = server default)")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "request timeout")
	flag.DurationVar(&opts.ttl, "ttl", 0, "expiry for push-creds (0 = none)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	lc := cfg.LoggingConfig("productctl")
	lc.Pretty = true
	logging.Setup(lc)

	if opts.cookiesPath == "" {
		opts.cookiesPath = cfg.Credentials.File
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := flag.Arg(0)
	switch cmd {
	case "", "fetch":
		err = runFetch(ctx, cfg, opts, os.Stdout)
	case "single":
		err = runSingle(ctx, cfg, opts, flag.Arg(1), os.Stdout)
	case "push-creds":
		err = runPushCreds(ctx, cfg, opts)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

func runFetch(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer) error {
	ids, err := batch.LoadIdentifiers(opts.idsPath)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no identifiers in %s", opts.idsPath)
	}
	log.Info().Int("identifiers", len(ids)).Str("path", opts.idsPath).Msg("Loaded identifiers")

	creds, err := loadCredentials(ctx, cfg, opts)
	if err != nil {
		return err
	}

	client, err := httpapi.NewClient(opts.server, opts.timeout)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := client.ExtractMulti(ctx, httpapi.MultiRequest{
		NVMIDs:      ids,
		Cookies:     creds.Cookie,
		Headers:     creds.Headers,
		Concurrency: opts.concurrency,
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	summarize(stdout, resp, elapsed)

	path, err := writeResult(opts.outDir, resp, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved result to %s\n", path)
	return nil
}

func runSingle(ctx context.Context, cfg *config.Config, opts options, nvmid string, stdout io.Writer) error {
	if nvmid == "" {
		return errors.New("single requires an identifier argument")
	}

	creds, err := loadCredentials(ctx, cfg, opts)
	if err != nil {
		return err
	}

	client, err := httpapi.NewClient(opts.server, opts.timeout)
	if err != nil {
		return err
	}

	resp, err := client.ExtractOne(ctx, httpapi.SingleRequest{NVMID: nvmid, Cookies: creds.Cookie, Headers: creds.Headers})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func runPushCreds(ctx context.Context, cfg *config.Config, opts options) error {
	creds, err := credentials.LoadFile(opts.cookiesPath)
	if err != nil {
		return err
	}

	rdb, err := newRedisClient(cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := credentials.NewRedisStore(rdb, cfg.Credentials.RedisKey)
	if err := store.Save(ctx, creds, opts.ttl); err != nil {
		return err
	}

	log.Info().
		Str("key", store.Key()).
		Int("cookie_bytes", len(creds.Cookie)).
		Int("headers", len(creds.Headers)).
		Dur("ttl", opts.ttl).
		Msg("Credentials pushed")
	return nil
}

func loadCredentials(ctx context.Context, cfg *config.Config, opts options) (credentials.Bundle, error) {
	switch opts.source {
	case "file":
		b, err := credentials.LoadFile(opts.cookiesPath)
		if err != nil {
			return credentials.Bundle{}, err
		}
		log.Info().Str("path", opts.cookiesPath).Int("cookie_bytes", len(b.Cookie)).Msg("Loaded credentials")
		return b, nil

	case "redis":
		rdb, err := newRedisClient(cfg)
		if err != nil {
			return credentials.Bundle{}, err
		}
		defer rdb.Close()

		store := credentials.NewRedisStore(rdb, cfg.Credentials.RedisKey)
		b, err := store.Load(ctx)
		if err != nil {
			return credentials.Bundle{}, fmt.Errorf("load credentials from %s: %w", store.Key(), err)
		}
		log.Info().Str("key", store.Key()).Int("cookie_bytes", len(b.Cookie)).Msg("Loaded credentials")
		return b, nil

	default:
		return credentials.Bundle{}, fmt.Errorf("unknown credential source %q", opts.source)
	}
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Credentials.RedisAddr == "" {
		return nil, errors.New("credentials.redis_addr is required for the redis source")
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Credentials.RedisAddr,
		Password: cfg.Credentials.RedisPassword,
		DB:       cfg.Credentials.RedisDB,
	}), nil
}

// summarize prints counts plus the first few successes and failures.
func summarize(w io.Writer, resp httpapi.MultiResponse, elapsed time.Duration) {
	fmt.Fprintf(w, "Total: %d  Success: %d  Failed: %d  Unique: %d  Duplicates removed: %d\n",
		resp.Total, resp.SuccessCount, resp.FailCount, resp.OriginalUniqueNVMIDs, resp.DuplicatesRemoved)
	fmt.Fprintf(w, "Elapsed: %s", elapsed.Round(time.Millisecond))
	if resp.Total > 0 {
		fmt.Fprintf(w, " (%s per item)", (elapsed / time.Duration(resp.Total)).Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	var ok, failed []httpapi.ItemResult
	for _, r := range resp.Results {
		if r.Success {
			ok = append(ok, r)
		} else {
			failed = append(failed, r)
		}
	}

	if len(ok) > 0 {
		fmt.Fprintf(w, "\nSucceeded (first %d):\n", min(previewCount, len(ok)))
		for i, r := range ok[:min(previewCount, len(ok))] {
			fmt.Fprintf(w, "  %d. %s  %v  [%v]\n", i+1, r.NVMID, field(r, "productTitle"), field(r, "mallName"))
		}
	}

	if len(failed) > 0 {
		fmt.Fprintf(w, "\nFailed (first %d):\n", min(previewCount, len(failed)))
		for i, r := range failed[:min(previewCount, len(failed))] {
			msg := "unknown error"
			if r.Error != nil {
				msg = *r.Error
			}
			fmt.Fprintf(w, "  %d. %s  %s\n", i+1, r.NVMID, msg)
		}
	}
}

func field(r httpapi.ItemResult, key string) any {
	if v, ok := r.Product[key]; ok {
		return v
	}
	return "N/A"
}

// writeResult saves resp as productdata_multi_<timestamp>.json under dir.
func writeResult(dir string, resp httpapi.MultiResponse, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("productdata_multi_%s.json", now.Format("20060102_150405")))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return path, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
