package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/db"
	"github.com/SmallTownDocumentary/gallery-backend/internal/logging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/seeds"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.IsDevelopment())

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal().Err(err).Msg("seeding needs a database")
	}
	gdb, err := db.Connect(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb, cfg.Database.Schema); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	res, err := seeds.SeedAll(context.Background(), gdb, towns.Default(), cfg.Seed, logging.Component(log, "seed"))
	if err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
}
