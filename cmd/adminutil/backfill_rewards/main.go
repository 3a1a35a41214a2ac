package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/brieflabs/briefhub/internal/brief"
	"github.com/brieflabs/briefhub/internal/config"
	"github.com/brieflabs/briefhub/internal/db"
	"github.com/brieflabs/briefhub/internal/reward"
	"github.com/brieflabs/briefhub/internal/wallet"
)

// backfill_rewards writes missing winner reward rows for completed briefs
// and, with -distribute, replays wallet credits for a specific brief. Both
// operations are safe to re-run: tier amounts are a pure function of the
// brief, and credits are deduplicated by reference.
func main() {
	briefID := flag.String("distribute", "", "Brief ID to replay reward credits for")
	dryRun := flag.Bool("dry-run", false, "Print tier amounts without writing anything")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	wallets := wallet.NewManager(wallet.NewPostgresRepository(pool))
	repo := brief.NewPostgresRepository(pool)
	briefs := brief.NewService(repo, wallets)

	if *briefID != "" {
		b, err := repo.Get(ctx, *briefID)
		if err != nil {
			log.Fatalf("fetch brief: %v", err)
		}
		if *dryRun {
			tiers, err := reward.ComputeTiers(b.RewardPool, b.WinnerCount)
			if err != nil {
				log.Fatalf("compute tiers: %v", err)
			}
			for _, t := range tiers {
				fmt.Printf("position %d: %d\n", t.Position, t.CalculatedAmount)
			}
			return
		}
		rewards, err := briefs.Distribute(ctx, *briefID)
		if err != nil {
			log.Fatalf("distribute: %v", err)
		}
		fmt.Printf("Replayed %d reward credits for brief %s.\n", len(rewards), *briefID)
		return
	}

	if *dryRun {
		log.Fatalf("-dry-run requires -distribute <brief-id>")
	}

	repaired, err := briefs.Backfill(ctx)
	if err != nil {
		log.Fatalf("backfill: %v", err)
	}
	fmt.Printf("Backfilled reward rows for %d briefs.\n", repaired)
}
