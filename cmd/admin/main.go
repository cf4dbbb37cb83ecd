package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"kiwilearn/internal/config"
	"kiwilearn/internal/database"
	"kiwilearn/internal/logging"
	"kiwilearn/internal/service"
)

func main() {
	// Define subcommands
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
	decayCmd := flag.NewFlagSet("decay-pets", flag.ExitOnError)
	evaluateCmd := flag.NewFlagSet("evaluate-achievements", flag.ExitOnError)

	evaluateUser := evaluateCmd.String("user", "", "User id to evaluate (required)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	ctx := context.Background()

	// Every command runs against an up to date schema
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	switch os.Args[1] {
	case "migrate":
		_ = migrateCmd.Parse(os.Args[2:])
		fmt.Println("✓ Migrations applied")

	case "seed":
		_ = seedCmd.Parse(os.Args[2:])
		n, err := db.SeedAchievements(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed achievements")
		}
		fmt.Printf("✓ Seeded %d new achievements\n", n)

	case "decay-pets":
		_ = decayCmd.Parse(os.Args[2:])
		n, err := service.NewPetService(db).DecayAll(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to decay pets")
		}
		fmt.Printf("✓ Updated %d pets\n", n)

	case "evaluate-achievements":
		_ = evaluateCmd.Parse(os.Args[2:])
		if *evaluateUser == "" {
			fmt.Println("Error: -user flag is required")
			evaluateCmd.PrintDefaults()
			os.Exit(1)
		}
		unlocked, err := service.NewAchievementService(db).Evaluate(ctx, *evaluateUser)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to evaluate achievements")
		}
		fmt.Printf("✓ Unlocked %d achievements\n", len(unlocked))
		for _, a := range unlocked {
			fmt.Printf("  %s %s\n", a.Icon, a.Name)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("KiwiLearn administration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  admin migrate                          Apply pending database migrations")
	fmt.Println("  admin seed                             Insert missing achievements")
	fmt.Println("  admin decay-pets                       Run one pet hunger decay step")
	fmt.Println("  admin evaluate-achievements -user ID   Unlock anything the user has earned")
}
