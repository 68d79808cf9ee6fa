package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"tagscan/cmd"
	"tagscan/internal/config"
	"tagscan/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Flags may still fix the config; commands validate again.
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting tagscan")

	cmd.Execute()

	log.Debug().Msg("tagscan shutdown")
	os.Exit(0)
}
