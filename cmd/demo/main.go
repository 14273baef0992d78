// Package main wires the live query capability end to end against a
// PostgreSQL instance: migration, inserts, reads and an explicit
// transaction with a rerunnable side effect.
package main

import (
	"context"
	"fmt"
	"os"

	"sqlcap/internal/core/entity"
	"sqlcap/internal/core/query"
	"sqlcap/internal/core/tx"
	"sqlcap/internal/infrastructure/storage/postgres"
	"sqlcap/pkg/logger"
)

// Person is an example record; any struct with db tags and a table name
// works the same way.
type Person struct {
	entity.BaseRecord
	Name string `db:"name" json:"name"`
	Age  int    `db:"age" json:"age"`
}

// TableName implements query.Record.
func (Person) TableName() string { return "person" }

var migration = []string{
	`CREATE TABLE IF NOT EXISTS person (
		id UUID PRIMARY KEY,
		version INT NOT NULL DEFAULT 1,
		attributes JSONB,
		name TEXT NOT NULL,
		age INT NOT NULL
	)`,
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	db := postgres.New(pool,
		postgres.WithRetryPredicate(postgres.Transient),
		postgres.WithRetryLimit(5),
		postgres.WithTxOptions(postgres.SerializableTxOptions()),
	)

	executed, err := tx.RunQuery(ctx, db, func(ctx context.Context, t *tx.Tx) ([]string, error) {
		return tx.RunMigration(ctx, t, migration)
	})
	if err != nil {
		log.Fatalw("migration failed", "error", err)
	}
	log.Infow("migration applied", "statements", len(executed))

	err = db.RunInTransaction(ctx, func(ctx context.Context, t *tx.Tx) error {
		alice := Person{BaseRecord: entity.NewBaseRecord(), Name: "Alice", Age: 34}
		key, err := tx.Insert(ctx, t, alice)
		if err != nil {
			return err
		}

		if _, err := tx.InsertMany(ctx, t, []Person{
			{BaseRecord: entity.NewBaseRecord(), Name: "Bob", Age: 27},
			{BaseRecord: entity.NewBaseRecord(), Name: "Carol", Age: 41},
		}); err != nil {
			return err
		}

		got, err := tx.GetOrErr[Person](ctx, t, key)
		if err != nil {
			return err
		}

		// The body may re-run on a serialization conflict; logging is
		// repeat-safe, so it goes through the escape hatch.
		_, err = tx.Rerunnable(ctx, t, func(ctx context.Context) (struct{}, error) {
			logger.Info(ctx, "inserted person", "key", key, "name", got.Name)
			return struct{}{}, nil
		})
		return err
	})
	if err != nil {
		log.Fatalw("transaction failed", "error", err)
	}

	adults, err := tx.RunQuery(ctx, db, func(ctx context.Context, t *tx.Tx) ([]query.Entity[Person], error) {
		return tx.SelectList[Person](ctx, t,
			[]query.Filter{{Field: "age", Operator: query.GreaterOrEqual, Value: 30}},
			query.OrderBy("name"),
		)
	})
	if err != nil {
		log.Fatalw("select failed", "error", err)
	}
	for _, e := range adults {
		log.Infow("person", "key", e.Key, "name", e.Record.Name, "age", e.Record.Age)
	}

	pool.LogStats(ctx)
}
