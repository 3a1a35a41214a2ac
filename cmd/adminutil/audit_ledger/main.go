package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/brieflabs/briefhub/internal/config"
	"github.com/brieflabs/briefhub/internal/db"
	"github.com/brieflabs/briefhub/internal/wallet"
)

// audit_ledger replays every wallet's transaction history and reports wallets
// whose stored balance disagrees with it. Exit code 1 when drift is found, so
// it can run from cron.
func main() {
	owner := flag.String("owner", "", "Audit a single owner's wallet instead of all")
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

	var drifts []wallet.Drift
	if *owner != "" {
		d, err := wallets.VerifyLedger(ctx, *owner)
		if err != nil {
			log.Fatalf("verify wallet: %v", err)
		}
		if d != nil {
			drifts = append(drifts, *d)
		}
	} else {
		drifts, err = wallets.AuditAll(ctx)
		if err != nil {
			log.Fatalf("audit: %v", err)
		}
	}

	if len(drifts) == 0 {
		fmt.Println("All wallets consistent.")
		return
	}
	for _, d := range drifts {
		fmt.Printf("DRIFT wallet=%s owner=%s balance=%d replayed=%d counters=%d chain_broken=%v\n",
			d.WalletID, d.OwnerID, d.Balance, d.ReplayedSum, d.CounterBalance, d.ChainBroken)
	}
	log.Fatalf("%d wallets drifted", len(drifts))
}
