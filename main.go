package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"rentwatch/config"
	"rentwatch/fetch"
	"rentwatch/httputil"
	"rentwatch/logging"
	"rentwatch/models"
	"rentwatch/notify"
	"rentwatch/scheduler"
	"rentwatch/searchurl"
	"rentwatch/services"
	"rentwatch/storage"
	"rentwatch/workers"
)

var (
	crawlNow  = flag.Bool("crawl", false, "Run every enabled watch query once and exit")
	addQuery  = flag.String("add-query", "", "Register a search URL as a watch query and exit")
	queryName = flag.String("name", "", "Display name for -add-query")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("rentwatch.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting rentwatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Loaded %d stations, threshold %dm", len(cfg.Stations), cfg.Filter.MRTDistanceThreshold)

	ctx := context.Background()

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if *addQuery != "" {
		if _, err := searchurl.Parse(*addQuery); err != nil {
			log.Fatalf("Not a supported search URL: %v", err)
		}
		name := *queryName
		if name == "" {
			name = *addQuery
		}
		q := &models.WatchQuery{ID: uuid.NewString(), Name: name, URL: *addQuery, Enabled: true}
		if err := sqliteStore.AddWatchQuery(q); err != nil {
			log.Fatalf("Failed to add watch query: %v", err)
		}
		log.Printf("Registered watch query %s (%s)", q.ID, name)
		return
	}

	pgStore, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.PostgresURL))

	clients := httputil.NewClients(cfg.Crawl.FetchTimeout, cfg.ProxyURL)
	fetcher := fetch.New(clients.Scraping, fetch.Options{
		MaxAttempts: cfg.Crawl.MaxRetries,
		BaseDelay:   cfg.Crawl.RetryDelay,
		Timeout:     cfg.Crawl.FetchTimeout,
	})
	notifier := notify.NewWebhookNotifier(clients.API, cfg.Notify.WebhookURL)

	watch := services.NewWatchService(cfg, fetcher, pgStore, notifier)
	watch.SetOperationalStore(sqliteStore)

	if cfg.Snapshot.Enabled {
		archiver, err := storage.NewSnapshotArchiver(ctx, storage.S3Config{
			Bucket:          cfg.Snapshot.Bucket,
			Region:          cfg.Snapshot.Region,
			Endpoint:        cfg.Snapshot.Endpoint,
			AccessKeyID:     cfg.Snapshot.AccessKeyID,
			SecretAccessKey: cfg.Snapshot.SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("Failed to set up snapshot archive: %v", err)
		}
		watch.SetArchiver(archiver)
		log.Printf("Snapshot archive: s3://%s", cfg.Snapshot.Bucket)
	}

	if *crawlNow {
		log.Println("Running crawl...")
		queries, err := sqliteStore.EnabledWatchQueries()
		if err != nil {
			log.Fatalf("Failed to load watch queries: %v", err)
		}
		if err := watch.RunAll(ctx, queries); err != nil {
			log.Fatalf("Crawl failed: %v", err)
		}
		log.Println("Crawl complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, watch, sqliteStore)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	healthcheckWorker := workers.NewHealthcheckWorker(pgStore, clients.Scraping)
	go healthcheckWorker.Run(ctx, 24*time.Hour, 20, 30*time.Minute)
	sched.SetWorkers(healthcheckWorker)
	log.Println("Healthcheck worker started")

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
