package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-pulse/pkg/database"
)

// migrateCmd applies the embedded schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "데이터베이스 스키마 마이그레이션",
	Long: `내장된 SQL 마이그레이션을 순서대로 적용합니다.

이미 적용된 버전은 schema_migrations 테이블로 건너뜁니다.
파이프라인은 테이블을 만들지 않으므로 첫 실행 전에 필요합니다.

Example:
  go run ./cmd/pulse migrate
  go run ./cmd/pulse migrate --list`,
	RunE: runMigrate,
}

var migrateList bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateList, "list", false, "마이그레이션 목록만 출력")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateList {
		migrations, err := database.Migrations()
		if err != nil {
			return err
		}
		for _, m := range migrations {
			fmt.Printf("  %s  %s\n", m.Version, m.Name)
		}
		return nil
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=postgres (got %s)", cfg.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	for _, name := range applied {
		PrintSuccess("Applied " + name)
	}
	if err != nil {
		PrintError(err.Error())
		return err
	}

	if len(applied) == 0 {
		PrintInfo("Schema is up to date")
	}
	log.WithField("applied", len(applied)).Info("Migrations complete")
	return nil
}
