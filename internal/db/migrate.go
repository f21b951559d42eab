package db

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Register postgres driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/orders/*.sql
var ordersMigrations embed.FS

//go:embed migrations/stock/*.sql
var stockMigrations embed.FS

// MigrateOrders applies the order-service schema.
func MigrateOrders(dsn string, logger *log.Logger) error {
	return runMigrations(ordersMigrations, "migrations/orders", dsn, "orders_schema_migrations", logger)
}

// MigrateStock applies the stock-reconciler schema.
func MigrateStock(dsn string, logger *log.Logger) error {
	return runMigrations(stockMigrations, "migrations/stock", dsn, "stock_schema_migrations", logger)
}

// Each schema tracks its version in its own table so both can live in one
// database without clobbering each other's history.
func runMigrations(fs embed.FS, path, dsn, versionTable string, logger *log.Logger) error {
	src, err := iofs.New(fs, path)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn+sep+"x-migrations-table="+versionTable)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Printf("migrations: no change")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Printf("migrations applied")
	return nil
}
