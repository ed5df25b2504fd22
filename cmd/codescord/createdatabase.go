package main

import (
	"context"
	"fmt"
	"time"

	"github.com/codescord/broker/internal/config"
	"github.com/codescord/broker/internal/store"
)

// runCreateDatabase provisions the front-end's reply-pointer persistence:
// a Postgres schema, or a Supabase table existence check. It never touches
// the core broker's runtime path.
func runCreateDatabase(args []string) {
	cfg := config.Get()

	st, err := store.Open(cfg.Database.Backend, cfg.Database.PostgresDSN, cfg.Database.SupabaseURL, cfg.Database.SupabaseServiceKey)
	if err != nil {
		fatal("failed to open backing store", "error", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := st.Provision(ctx); err != nil {
		fatal("failed to provision submissions store", "error", err)
	}
	fmt.Println("submissions store ready")
}
