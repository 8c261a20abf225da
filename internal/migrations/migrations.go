package migrations

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	driver "go.mongodb.org/mongo-driver/mongo"
)

//go:embed *.json
var migrationsFS embed.FS

// Run applies all pending migrations against the named database. Each
// migration file is a JSON array of database commands.
func Run(client *driver.Client, dbName string) error {
	d, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("error creating migrations source: %s", err)
	}
	i, err := mongodb.WithInstance(client, &mongodb.Config{DatabaseName: dbName})
	if err != nil {
		return fmt.Errorf("error creating mongodb instance for migration: %s", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", d, "mongodb", i)
	if err != nil {
		return fmt.Errorf("error creating migrator: %s", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("error migrating: %s", err)
	}
	slog.Info("migrated")

	return nil
}
