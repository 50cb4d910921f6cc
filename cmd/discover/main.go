package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"autoapply/internal/config"
	"autoapply/internal/database"
	dbpostgres "autoapply/internal/database/postgres"
	"autoapply/internal/domain"
	"autoapply/internal/executor"
	"autoapply/internal/repository"
)

// One-shot discovery run: scrape a platform's listings for a query and
// persist the postings so operators can open applications against them.
func main() {
	platform := flag.String("platform", "linkedin", "platform to discover on")
	query := flag.String("query", "", "job search query")
	limit := flag.Int("limit", 20, "max postings to collect")
	flag.Parse()

	_ = godotenv.Load()

	q := strings.TrimSpace(*query)
	if q == "" {
		log.Fatalf("provide -query")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres connect failed: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema failed: %v", err)
	}

	jobs := repository.NewPostgresJobRepository(db)
	discovery := executor.NewCollyDiscovery(executor.DefaultSources())

	found, fail := discovery.Discover(ctx, domain.Platform(*platform), q, *limit)
	if fail != nil {
		log.Fatalf("discovery failed: %v", fail)
	}

	saved := 0
	for _, j := range found {
		if err := jobs.Create(ctx, j); err != nil {
			log.Printf("persist failed | url=%s error=%v", j.URL, err)
			continue
		}
		saved++
	}
	log.Printf("discovery done | platform=%s query=%q found=%d saved=%d", *platform, q, len(found), saved)
}
