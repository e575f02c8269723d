package migrations

import (
	"context"
	"fmt"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261016000000, down_20261016000000)
}

// up_20261016000000 creates the identity and settings tables.
func up_20261016000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	if _, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*models.User)(nil)).
		Index("idx_users_uuid").
		Column("uuid").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users uuid index: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating settings table...")
	if _, err := db.NewCreateTable().
		Model((*models.Setting)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

func down_20261016000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping settings table...")
	if _, err := db.NewDropTable().Model((*models.Setting)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop settings table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [down] dropping users table...")
	if _, err := db.NewDropTable().Model((*models.User)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop users table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}
