package main

import (
	"flag"
	"fmt"
	"log"

	"dynupd/internal/auth"
	"dynupd/internal/config"
	"dynupd/internal/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	hashPassword := flag.Bool("hash-password", false, "Read a password from stdin, print its argon2id hash and exit")
	flag.Parse()

	if *hashPassword {
		var password string
		if _, err := fmt.Scanln(&password); err != nil {
			log.Fatalf("Failed to read password from stdin: %v", err)
		}
		fmt.Println(auth.HashPassword(password))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("=== dynupd — dynamic DNS update daemon ===")
	log.Printf("Version: %s", version)
	log.Printf("Listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Update program: %s", cfg.UpdateProgram.Bin)
	log.Printf("Serving %d user(s)", len(cfg.Users))

	if err := server.Start(cfg, version); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
