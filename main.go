package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"piads/config"
	"piads/httputil"
	"piads/logging"
	"piads/rank"
	"piads/scheduler"
	"piads/services"
	"piads/storage"
	"piads/workers"
)

var (
	syncNow      = flag.Bool("sync", false, "Run one sync pass and exit")
	backupNow    = flag.Bool("backup", false, "Write one backup snapshot and exit")
	recommendFor = flag.String("recommend", "", "Print recommendations for a user ID and exit")
)

func main() {
	flag.Parse()

	logFile, err := logging.Setup("piads.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting piads...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	clients := httputil.NewClients()

	local, err := storage.NewLocalStore(cfg.Database.LocalPath)
	if err != nil {
		log.Fatalf("Failed to open local database: %v", err)
	}
	defer local.Close()
	log.Printf("Local database: %s", cfg.Database.LocalPath)

	// Pick the remote backend: direct Postgres when a connection string
	// is set, the Supabase REST API otherwise. Neither means local-only
	// mode; writes queue up for sync once a remote appears in config.
	var remote storage.Backend
	switch {
	case cfg.Database.URL != "":
		pg, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			log.Printf("Warning: could not connect to Postgres, starting in local-only mode: %v", err)
		} else {
			defer pg.Close()
			remote = pg
			log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))
		}
	case cfg.Supabase.URL != "" && cfg.Supabase.ServiceKey != "":
		remote = storage.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey, clients.API)
		log.Printf("Using Supabase REST backend: %s", cfg.Supabase.URL)
	default:
		log.Println("No remote backend configured, running local-only")
	}

	store := storage.NewStore(remote, local)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Offsite backup target, when configured
	var s3 *storage.S3Backup
	if cfg.Backup.S3.Configured() {
		s3, err = storage.NewS3Backup(ctx, cfg.Backup.S3)
		if err != nil {
			log.Printf("Warning: could not initialize object storage backup: %v", err)
		} else {
			log.Printf("Offsite backup bucket: %s", cfg.Backup.S3.Bucket)
		}
	}

	syncWorker := workers.NewSyncWorker(store)
	backupWorker := workers.NewBackupWorker(store, cfg.Backup.Path, s3)
	store.SetBackupHook(backupWorker.Trigger)

	if *syncNow {
		log.Println("Running sync pass...")
		syncWorker.RunOnce(ctx, cfg.Sync.BatchSize)
		return
	}
	if *backupNow {
		log.Println("Writing backup snapshot...")
		snap, err := local.Snapshot(ctx)
		if err != nil {
			log.Fatalf("Snapshot failed: %v", err)
		}
		if err := storage.WriteSnapshotFile(cfg.Backup.Path, snap); err != nil {
			log.Fatalf("Backup failed: %v", err)
		}
		log.Printf("Snapshot written to %s", cfg.Backup.Path)
		return
	}

	if *recommendFor != "" {
		engine := rank.NewEngine(cfg.Ranking.Weights)
		recommendService := services.NewRecommendService(store, engine)
		recs, err := recommendService.Scored(ctx, *recommendFor, 0)
		if err != nil {
			log.Fatalf("Recommendation failed: %v", err)
		}
		for i, rec := range recs {
			log.Printf("%2d. %s score=%d (%s)", i+1, rec.ListingID, rec.Score, strings.Join(rec.Reasons, ", "))
		}
		return
	}

	sched := scheduler.New(cfg, store)
	sched.SetWorkers(syncWorker, backupWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	go syncWorker.Run(ctx, cfg.Sync.BatchSize, cfg.Sync.Interval)
	log.Println("Sync worker started")

	go backupWorker.Run(ctx, time.Hour)
	log.Println("Backup worker started")

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
}

// maskConnectionString hides credentials in a connection URL for logging
func maskConnectionString(conn string) string {
	u, err := url.Parse(conn)
	if err != nil {
		return "<unparseable>"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
