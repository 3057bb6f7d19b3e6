package main

import (
	"flag"
	"log"
	"strings"

	"github.com/simp-lee/userlist/internal/app"
	"github.com/simp-lee/userlist/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	seedFile := flag.String("seed", "", "db.json file loaded into an empty users table (overrides database.seed_file)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}
	if s := strings.TrimSpace(*seedFile); s != "" {
		cfg.Database.SeedFile = s
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal("failed to create app: ", err)
	}

	if err := a.Run(); err != nil {
		log.Fatal("server error: ", err)
	}
}
