// Package main is the reviewdesk CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/cli"
	"github.com/hyperjump/reviewdesk/internal/collab"
	"github.com/hyperjump/reviewdesk/internal/export"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/internal/server"
	"github.com/hyperjump/reviewdesk/internal/watcher"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "import":
		runImport()
	case "list":
		runList()
	case "search":
		runSearch()
	case "stats":
		runStats()
	case "analyze":
		runAnalyze()
	case "export":
		runExport()
	case "seed":
		runSeed()
	case "reindex":
		runReindex()
	case "version", "--version", "-v":
		fmt.Printf("reviewdesk version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and initializes components. It exits on failure.
func setup(configPath string, debugFlag bool) (*Components, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return components, logger
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	cfg := components.Config

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Import.InboxDir != "" {
		im := components.Importer
		inbox := watcher.NewWatcher(cfg.Import.InboxDir, cfg.Import.Extensions,
			func(path string) {
				report, err := im.ProcessInboxFile(watchCtx, path)
				if err != nil {
					logger.Warn("inbox import failed", zap.String("path", path), zap.Error(err))
					return
				}
				if report != nil {
					logger.Info("inbox file imported", zap.String("path", path),
						zap.String("batch_id", report.BatchID), zap.Int("imported", report.Imported),
						zap.Int("failed", report.Failed))
				}
			},
			watcher.WithLogger(logger))
		if err := inbox.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
		inbox.SyncExistingFiles()
		logger.Info("watching inbox", zap.String("dir", inbox.Dir()))
	}

	srv := server.NewServer(components.Pipeline, components.Analyzer, &cfg.Server, logger,
		components.serverOptions()...)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	companyID := fs.Int64("company", 0, "company id (required)")
	platform := fs.String("platform", string(models.PlatformGooglePlay), "platform: google_play or app_store")
	rating := fs.Int("rating", 0, "star rating 1-5 (0 = none)")
	date := fs.String("date", "", "review date, YYYY-MM-DD or RFC 3339")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	content := joinArgs(fs.Args())
	if content == "" || *companyID == 0 {
		fmt.Println("Usage: reviewdesk ingest --company <id> [flags] <review text>")
		os.Exit(1)
	}
	in := models.ReviewInput{CompanyID: *companyID, Content: content, Platform: models.Platform(*platform)}
	if *rating != 0 {
		in.Rating = rating
	}
	if *date != "" {
		t, err := parseDate(*date)
		if err != nil {
			fail("Invalid date: %v", err)
		}
		in.ReviewDate = &t
	}

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	review, err := components.Pipeline.Ingest(context.Background(), in)
	if err != nil {
		fail("Ingest failed: %v", err)
	}
	if err := cli.WriteReview(os.Stdout, review, cli.ParseFormat(*output)); err != nil {
		fail("Output failed: %v", err)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	workers := fs.Int("workers", 0, "concurrent ingests (0 = from config)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: reviewdesk import [flags] <file.jsonl>...")
		os.Exit(1)
	}
	if *workers < 0 {
		fail("workers must be >= 0")
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	if *workers > 0 {
		cfg.Import.Workers = *workers
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	format := cli.ParseFormat(*output)
	failed := false
	for _, path := range fs.Args() {
		report, err := components.Importer.ImportFile(context.Background(), path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Import of %s failed: %v\n", path, err)
			failed = true
			continue
		}
		if err := cli.WriteImportReport(os.Stdout, report, format); err != nil {
			fail("Output failed: %v", err)
		}
		if report.Failed > 0 {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	companyID := fs.Int64("company", 0, "filter by company id (0 = all)")
	sentiment := fs.String("sentiment", "", "filter by sentiment: positive, negative or neutral")
	department := fs.String("department", "", "filter by assigned department")
	limit := fs.Int("limit", models.DefaultListLimit, "maximum number of reviews")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	filter := models.ReviewFilter{
		CompanyID:  optionalID(*companyID),
		Sentiment:  models.Sentiment(*sentiment),
		Department: *department,
		Limit:      *limit,
	}
	reviews, err := components.Pipeline.ListReviews(context.Background(), filter)
	if err != nil {
		fail("List failed: %v", err)
	}
	if err := cli.WriteReviews(os.Stdout, reviews, cli.ParseFormat(*output)); err != nil {
		fail("Output failed: %v", err)
	}
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: reviewdesk search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  reviewdesk search 로그인 오류
  reviewdesk search --sentiment negative --size 20 "앱이 느려요"
  reviewdesk search --server "" 이체                # read the local index directly
`)
}

func runSearch() {
	args := reorderArgs(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use the local index directly)")
	size := fs.Int("size", 0, "number of results (0 = configured default)")
	sentiment := fs.String("sentiment", "", "filter by sentiment")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(args)

	queryStr := joinArgs(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	q := models.SearchQuery{Query: queryStr, Size: *size, Sentiment: models.Sentiment(*sentiment)}
	format := cli.ParseFormat(*output)

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids a Bleve/SQLite lock conflict).
		var hits []*models.SearchHit
		if err := getEnvelope(searchURL(*serverURL, q), &hits); err != nil {
			fail("Search failed: %v", err)
		}
		if err := cli.WriteSearchHits(os.Stdout, queryStr, hits, format); err != nil {
			fail("Output failed: %v", err)
		}
		return
	}

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	hits, err := components.Pipeline.SearchReviews(context.Background(), q)
	if err != nil {
		fail("Search failed: %v", err)
	}
	if err := cli.WriteSearchHits(os.Stdout, queryStr, hits, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func searchURL(base string, q models.SearchQuery) string {
	v := url.Values{}
	v.Set("q", q.Query)
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	if q.Sentiment != "" {
		v.Set("sentiment", string(q.Sentiment))
	}
	return strings.TrimRight(base, "/") + "/api/reviews/search?" + v.Encode()
}

// getEnvelope GETs u and decodes the data field of the response envelope into dst.
func getEnvelope(u string, dst any) error {
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	if !env.Success {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Error)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use local storage)")
	companyID := fs.Int64("company", 0, "company id (0 = all companies)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var stats *models.SentimentStats
	if *serverURL != "" {
		u := strings.TrimRight(*serverURL, "/") + "/api/reviews/sentiment-stats"
		if *companyID != 0 {
			u += "?company_id=" + strconv.FormatInt(*companyID, 10)
		}
		stats = &models.SentimentStats{}
		if err := getEnvelope(u, stats); err != nil {
			fail("Stats failed: %v", err)
		}
	} else {
		components, logger := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		var err error
		stats, err = components.Pipeline.SentimentStats(context.Background(), optionalID(*companyID))
		if err != nil {
			fail("Stats failed: %v", err)
		}
	}
	if err := cli.WriteStats(os.Stdout, stats, cli.ParseFormat(*output)); err != nil {
		fail("Output failed: %v", err)
	}
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	analysisType := fs.String("type", collab.TypeComprehensive, "analysis type: financial, technical or comprehensive")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	ids, err := parseIDs(fs.Args())
	if err != nil || len(ids) == 0 {
		fmt.Println("Usage: reviewdesk analyze [--type financial|technical|comprehensive] <review-id>...")
		os.Exit(1)
	}

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	res, err := components.Analyzer.Analyze(context.Background(), ids, *analysisType)
	if err != nil {
		fail("Analysis failed: %v", err)
	}
	if err := cli.WriteAnalysis(os.Stdout, res, cli.ParseFormat(*output)); err != nil {
		fail("Output failed: %v", err)
	}
	if res.Status == collab.StatusUnavailable || res.Status == collab.StatusEmpty {
		os.Exit(1)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "reviews.xlsx", "output workbook path")
	companyID := fs.Int64("company", 0, "filter by company id (0 = all)")
	sentiment := fs.String("sentiment", "", "filter by sentiment")
	department := fs.String("department", "", "filter by assigned department")
	limit := fs.Int("limit", models.MaxListLimit, "maximum number of reviews")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	filter := models.ReviewFilter{
		CompanyID:  optionalID(*companyID),
		Sentiment:  models.Sentiment(*sentiment),
		Department: *department,
		Limit:      *limit,
	}
	reviews, err := components.Pipeline.ListReviews(ctx, filter)
	if err != nil {
		fail("Export failed: %v", err)
	}
	stats, err := components.Pipeline.SentimentStats(ctx, filter.CompanyID)
	if err != nil {
		fail("Export failed: %v", err)
	}
	if err := export.SaveXLSX(*out, reviews, stats); err != nil {
		fail("Export failed: %v", err)
	}
	fmt.Printf("Exported %d reviews to %s\n", len(reviews), *out)
}

func runSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	withReviews := fs.Bool("reviews", true, "also ingest sample reviews")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	report, err := components.Pipeline.Seed(context.Background(), *withReviews)
	if err != nil {
		fail("Seed failed: %v", err)
	}
	fmt.Printf("Seeded %d companies, %d departments, %d reviews\n", report.Companies, report.Departments, report.Reviews)
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	n, err := components.Pipeline.Reindex(context.Background())
	if err != nil {
		fail("Reindex failed: %v", err)
	}
	fmt.Printf("Reindexed %d reviews\n", n)
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them. Go's flag package stops at the
// first non-flag argument, so "reviewdesk search 로그인 -size 5" would otherwise leave
// -size unparsed.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word text works the same with or
// without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// parseIDs accepts ids as separate args, comma-separated, or both.
func parseIDs(args []string) ([]int64, error) {
	var ids []int64
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid review id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func printUsage() {
	fmt.Println(`reviewdesk - Financial app review intake and analysis

Usage:
  reviewdesk server [flags]                Start the HTTP server (and inbox watcher when configured)
  reviewdesk ingest [flags] <text>         Ingest one review
  reviewdesk import [flags] <file>...      Import JSON-lines review batches
  reviewdesk list [flags]                  List reviews, newest first
  reviewdesk search [flags] <query>        Full-text search over reviews
  reviewdesk stats [flags]                 Show sentiment statistics
  reviewdesk analyze [flags] <id>...       Run a collaborative analysis over reviews
  reviewdesk export [flags]                Write reviews and stats to an XLSX workbook
  reviewdesk seed [flags]                  Load sample companies, departments and reviews
  reviewdesk reindex [flags]               Rebuild the search index from storage
  reviewdesk version                       Show version
  reviewdesk help                          Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/reviewdesk/config.yaml)
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Ingest Flags:
  --company int      Company id (required)
  --platform string  google_play or app_store (default: google_play)
  --rating int       Star rating 1-5
  --date string      Review date (YYYY-MM-DD or RFC 3339)

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for the local index.
  --size int         Number of results
  --sentiment string Filter by sentiment

Analyze Flags:
  --type string      financial, technical or comprehensive (default: comprehensive)

Examples:
  reviewdesk seed
  reviewdesk ingest --company 1 --rating 1 --platform app_store "로그인이 안돼요"
  reviewdesk import reviews.jsonl
  reviewdesk search --sentiment negative 로그인
  reviewdesk stats --company 1 --output json
  reviewdesk analyze --type technical 1,2,3
  reviewdesk export --out /tmp/reviews.xlsx --company 1`)
}
