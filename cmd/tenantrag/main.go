// Package main is the tenantrag CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/tenantrag/internal/cli"
	"github.com/hyperjump/tenantrag/internal/config"
	"github.com/hyperjump/tenantrag/internal/extract"
	"github.com/hyperjump/tenantrag/internal/fileid"
	"github.com/hyperjump/tenantrag/internal/indexer"
	"github.com/hyperjump/tenantrag/internal/models"
	"github.com/hyperjump/tenantrag/internal/ranking"
	"github.com/hyperjump/tenantrag/internal/search"
	"github.com/hyperjump/tenantrag/internal/server"
	"github.com/hyperjump/tenantrag/internal/storage"
	"github.com/hyperjump/tenantrag/internal/store"
	"github.com/hyperjump/tenantrag/internal/watcher"
	"github.com/hyperjump/tenantrag/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/tenantrag/config.yaml"
	configEnvVar      = "TENANTRAG_CONFIG"
)

// configPathDefault returns $TENANTRAG_CONFIG when set, else the system-wide default.
func configPathDefault() string {
	if p := os.Getenv(configEnvVar); p != "" {
		return p
	}
	return defaultConfigPath
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file yields the built-in defaults.
// It returns the config and the path actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := config.Default("")
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "ingest", "index":
		runIngest()
	case "query", "search":
		runQuery(false)
	case "chat":
		runQuery(true)
	case "delete":
		runDelete()
	case "delete-tenant":
		runDeleteTenant()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("tenantrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds a logger and components. Failures exit the process.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watchSvc server.WatchService
	if cfg.Watch.Directory != "" {
		w := newInboxWatcher(cfg, components.Indexer, logger)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("failed to start watcher", zap.Error(err))
		}
		go w.SyncExistingFiles()
		watchSvc = w
		logger.Info("watching tenant inboxes", zap.String("directory", cfg.Watch.Directory))
	}

	srv := server.NewServer(components.Engine, components.Indexer, components.Registry, cfg, logger, watchSvc)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// newInboxWatcher wires watcher events to the indexer: a changed file is (re)indexed for
// the tenant owning its inbox, a removed file has its document deleted.
func newInboxWatcher(cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger) *watcher.Watcher {
	exts := cfg.Watch.Extensions
	return watcher.NewWatcher(
		cfg.Watch.Directory,
		exts,
		cfg.Watch.RecursiveOrDefault(),
		func(tenantID, path string) {
			if _, _, err := idx.IndexFile(context.Background(), tenantID, path, exts); err != nil {
				logger.Warn("watch index file failed",
					zap.String("tenant_id", tenantID), zap.String("path", path), zap.Error(err))
			}
		},
		func(tenantID, path string) {
			if _, err := idx.DeleteFile(context.Background(), tenantID, path); err != nil {
				logger.Warn("watch delete file failed",
					zap.String("tenant_id", tenantID), zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond),
	)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	tenant := fs.String("tenant", "", "tenant id (required)")
	docID := fs.String("id", "", "document id for a single file (default: derived from the path)")
	title := fs.String("title", "", "document title for a single file (default: filename)")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if *tenant == "" || fs.NArg() < 1 {
		fmt.Println("Usage: tenantrag ingest --tenant T [--id D] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Indexer.IndexDirectory(ctx, *tenant, path, cfg.Watch.Extensions, *recursive)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Indexing directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Indexed %d file(s) from %s for tenant %s\n", n, path, *tenant)
		return
	}

	if *docID == "" && *title == "" {
		doc, n, err := components.Indexer.IndexFile(ctx, *tenant, path, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Document indexed: %s (%d chunks)\n", doc.ID, n)
		return
	}

	// Explicit id or title: extract and index as a plain document.
	text, err := extract.NewExtractor().Extract(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		os.Exit(1)
	}
	absPath, _ := filepath.Abs(path)
	doc, n, err := components.Indexer.IndexDocument(ctx, *tenant, &models.DocumentInput{
		ID:       *docID,
		Title:    *title,
		Filename: filepath.Base(path),
		FilePath: absPath,
		Content:  indexer.Preprocess(text),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document indexed: %s (%d chunks)\n", doc.ID, n)
}

func runQuery(chat bool) {
	name := "query"
	if chat {
		name = "chat"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL; empty reads the stores directly")
	tenant := fs.String("tenant", "", "tenant id (required)")
	limit := fs.Int("limit", 0, "number of results (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	filter := filterFlag{}
	fs.Var(&filter, "filter", "metadata filter key=value (repeatable)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	queryStr := buildQuery(fs.Args())
	if *tenant == "" || queryStr == "" {
		fmt.Printf("Usage: tenantrag %s --tenant T [--limit N] [--filter k=v]... [--output text|json] <query>\n", name)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	req := &models.RetrieveRequest{Query: queryStr, MaxResults: *limit}
	if len(filter) > 0 {
		req.MetadataFilter = models.Metadata(filter)
	}

	ctx := context.Background()
	if *serverURL != "" {
		client := newAPIClient(*serverURL, *tenant)
		if chat {
			answer, err := client.Chat(ctx, req)
			exitOn("Chat failed", err)
			exitOn("Output failed", cli.WriteAnswer(os.Stdout, answer, format))
			return
		}
		resp, err := client.Query(ctx, req)
		exitOn("Query failed", err)
		exitOn("Output failed", cli.WriteRetrieveResults(os.Stdout, resp, format))
		return
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	if chat {
		answer, err := components.Engine.Answer(ctx, *tenant, req)
		exitOn("Chat failed", err)
		exitOn("Output failed", cli.WriteAnswer(os.Stdout, answer, format))
		return
	}
	resp, err := components.Engine.Retrieve(ctx, *tenant, req)
	exitOn("Query failed", err)
	exitOn("Output failed", cli.WriteRetrieveResults(os.Stdout, resp, format))
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	tenant := fs.String("tenant", "", "tenant id (required)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if *tenant == "" || fs.NArg() < 1 {
		fmt.Println("Usage: tenantrag delete --tenant T <document-id-or-file>")
		os.Exit(1)
	}
	target := fs.Arg(0)

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	docID := target
	if _, err := os.Stat(target); err == nil {
		absPath, _ := filepath.Abs(target)
		docID = fileid.FileDocID(*tenant, absPath)
	}
	n, err := components.Indexer.DeleteDocument(context.Background(), *tenant, docID)
	exitOn("Deletion failed", err)
	fmt.Printf("Document deleted: %s (%d chunks)\n", docID, n)
}

func runDeleteTenant() {
	fs := flag.NewFlagSet("delete-tenant", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: tenantrag delete-tenant <tenant>")
		os.Exit(1)
	}
	tenant := fs.Arg(0)

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	exitOn("Tenant deletion failed", components.Indexer.DeleteTenant(context.Background(), tenant))
	fmt.Printf("Tenant deleted: %s\n", tenant)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL; empty reads the stores directly")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx := context.Background()
	var st *models.Status
	if *serverURL != "" {
		st, err = newAPIClient(*serverURL, "").Status(ctx)
		exitOn("Status failed", err)
	} else {
		cfg, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		st, err = server.CollectStatus(ctx, components.Registry, components.Catalog, cfg)
		exitOn("Status failed", err)
	}
	exitOn("Output failed", cli.WriteStatus(os.Stdout, st, format))
}

func exitOn(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags (and their values) that appear after the positional arguments to
// the front, since the flag package stops at the first non-flag argument.
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

// filterFlag collects repeated --filter key=value pairs into metadata. Values are typed
// with models.ParseValue, so "chunk_id=2" filters on the integer 2.
type filterFlag models.Metadata

func (f filterFlag) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range models.Metadata(f).Keys() {
		parts = append(parts, k+"="+f[k].String())
	}
	return strings.Join(parts, ",")
}

func (f filterFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("filter %q must be key=value", s)
	}
	f[strings.TrimSpace(k)] = models.ParseValue(v)
	return nil
}

// Components holds the long-lived objects shared by every subcommand.
type Components struct {
	Registry *store.Registry
	Catalog  *storage.SQLiteStorage
	Engine   *search.Engine
	Indexer  *indexer.Indexer
}

// Close releases the catalog and the snapshot backend.
func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	p, err := store.NewPersister(cfg.Store.Backend, cfg.Store.SnapshotDir(), cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot backend: %w", err)
	}
	scorer, err := ranking.ByName(cfg.Retrieval.Scorer)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	registry := store.NewRegistry(p, store.WithLogger(logger), store.WithScorer(scorer))

	catalog, err := storage.NewSQLiteStorage(cfg.Store.CatalogPath)
	if err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault())
	if err != nil {
		_ = catalog.Close()
		_ = registry.Close()
		return nil, err
	}
	idx := indexer.NewIndexer(registry, chunker,
		indexer.WithCatalog(catalog),
		indexer.WithExtractor(extract.NewExtractor()),
		indexer.WithLogger(logger),
	)
	engine := search.NewEngine(registry, cfg.Retrieval, search.WithLogger(logger))

	logger.Debug("components initialized",
		zap.String("backend", p.Kind()),
		zap.String("scorer", scorer.Name()),
		zap.String("data_dir", cfg.Store.DataDir),
		zap.String("catalog", cfg.Store.CatalogPath))
	return &Components{
		Registry: registry,
		Catalog:  catalog,
		Engine:   engine,
		Indexer:  idx,
	}, nil
}

func printUsage() {
	fmt.Println(`tenantrag - multi-tenant document retrieval

Usage:
  tenantrag serve [flags]                      Start the HTTP server (and the inbox watcher if configured)
  tenantrag ingest --tenant T <file-or-dir>    Index a file or directory
  tenantrag query --tenant T <query>           Rank a tenant's chunks against a query
  tenantrag chat --tenant T <question>         Answer from a tenant's best chunks
  tenantrag delete --tenant T <document-id>    Delete a document and its chunks
  tenantrag delete-tenant <tenant>             Delete a tenant and all its data
  tenantrag status [flags]                     Show tenants, chunk counts and disk usage
  tenantrag version                            Show version
  tenantrag help                               Show this help

Common Flags:
  --config string    Config file path (default: $TENANTRAG_CONFIG or /usr/local/etc/tenantrag/config.yaml)

Serve Flags:
  --debug            Enable debug logging

Ingest Flags:
  --tenant string    Tenant id
  --id string        Document id for a single file (default: derived from tenant and path)
  --title string     Document title for a single file
  --recursive        Descend into subdirectories (default: true)

Query/Chat Flags:
  --tenant string    Tenant id
  --limit int        Number of results (default: retrieval.default_results)
  --filter k=v       Metadata filter; repeat for several keys
  --output string    Output format: text or json (default: text)
  --server string    Server URL; empty reads the stores directly

Status Flags:
  --output string    Output format: text or json (default: text)
  --server string    Server URL; empty reads the stores directly

Examples:
  tenantrag serve
  tenantrag ingest --tenant acme ./handbook.pdf
  tenantrag query --tenant acme --limit 3 "vacation policy"
  tenantrag query --tenant acme --filter document_id=handbook --output json "holidays"
  tenantrag delete --tenant acme handbook
  tenantrag status --output json`)
}
