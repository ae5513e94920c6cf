package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/sqlstore"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/config"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
)

var seedCmd = &cobra.Command{
	Use:   "seed-institution",
	Short: "Insert or update an institution in a SQLite development database",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().String("database-url", "", "Connection string (defaults to $DATABASE_URL)")
	seedCmd.Flags().String("code", "", "Institution code")
	_ = seedCmd.MarkFlagRequired("code")
	seedCmd.Flags().String("name", "", "Institution name")
	seedCmd.Flags().String("api-key", "", "Catalog API key")
	_ = seedCmd.MarkFlagRequired("api-key")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	code, _ := cmd.Flags().GetString("code")
	name, _ := cmd.Flags().GetString("name")
	apiKey, _ := cmd.Flags().GetString("api-key")
	if name == "" {
		name = code
	}

	dbCfg := config.DatabaseConfig{
		Driver: "sqlite",
		URL:    flagOrEnv(cmd, "database-url", "DATABASE_URL"),
	}
	driver, dsn, err := dbCfg.DSN()
	if err != nil {
		return err
	}
	if driver != "sqlite" {
		return fmt.Errorf("seeding is only supported for sqlite databases, got %s", driver)
	}
	if dsn == ":memory:" {
		return fmt.Errorf("an in-memory database would be discarded on exit; pass a file path")
	}

	ctx := cmd.Context()
	store, err := sqlstore.Open(ctx, driver, dsn, 1, zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	sess, err := store.Session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := (sqlstore.InstitutionRepository{}).Upsert(ctx, sess, &entity.Institution{
		Name:   name,
		Code:   code,
		APIKey: apiKey,
	}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "institution %s saved to %s\n", code, dsn)
	return nil
}
