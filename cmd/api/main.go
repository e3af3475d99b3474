package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"docmind/internal/api"
	"docmind/internal/config"
	"docmind/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	srv, err := api.NewServer(cfg, db)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("docmind api listening on %s %s data_root=%s index_root=%s", cfg.APIAddr, srv.Providers(), cfg.DataRoot, cfg.IndexRoot)
	if err := http.ListenAndServe(cfg.APIAddr, srv.Routes()); err != nil {
		log.Fatal(err)
	}
}
