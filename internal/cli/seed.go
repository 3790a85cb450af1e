// internal/cli/seed.go
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	app "storefront/internal"
	"storefront/internal/config"
	"storefront/internal/repository/postgres"
	"storefront/internal/seed"
	"storefront/internal/util"
	"storefront/pkg/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Top the store up with generated users and items",
	Long: `seed inserts only what is missing: running it twice with the same
counts leaves the store unchanged. All inserts happen in one transaction.`,
	RunE: runSeed,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database schema",
	RunE:  runMigrate,
}

func init() {
	defaults := seed.DefaultOptions()
	seedCmd.Flags().Int("users", defaults.Users, "Desired total number of users")
	seedCmd.Flags().Int("items", defaults.Items, "Desired total number of items")
	seedCmd.Flags().Int64("balance", defaults.Balance, "Starting balance of new users")
	seedCmd.Flags().Int64("min-price", defaults.MinPrice, "Lowest item price")
	seedCmd.Flags().Int64("max-price", defaults.MaxPrice, "Highest item price")
	seedCmd.Flags().Uint64("seed", 0, "Random seed (0 picks one from the clock)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var opts seed.Options
	opts.Users, _ = cmd.Flags().GetInt("users")
	opts.Items, _ = cmd.Flags().GetInt("items")
	opts.Balance, _ = cmd.Flags().GetInt64("balance")
	opts.MinPrice, _ = cmd.Flags().GetInt64("min-price")
	opts.MaxPrice, _ = cmd.Flags().GetInt64("max-price")
	randSeed, _ := cmd.Flags().GetUint64("seed")
	if randSeed == 0 {
		randSeed = uint64(time.Now().UnixNano())
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	util.InitLogger(cfg.Log.Level)
	logger := util.GetLogger()

	database, err := app.ConnectDB(ctx, cfg.DB, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	seeder := seed.NewSeeder(
		database,
		postgres.NewUserRepository(),
		postgres.NewItemRepository(),
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		seed.NewGenerator(randSeed),
		logger,
	)
	res, err := seeder.Run(ctx, opts)
	if err != nil {
		logger.Error("Seeding failed", "error", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d users and %d items\n", res.UsersCreated, res.ItemsCreated)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	util.InitLogger(cfg.Log.Level)

	cfg.DB.Migrate = true
	database, err := app.ConnectDB(cmd.Context(), cfg.DB, util.GetLogger())
	if err != nil {
		return err
	}
	return database.Close()
}
