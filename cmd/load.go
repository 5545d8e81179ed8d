package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/triguard/subro-cli/internal/dataset"
	"github.com/triguard/subro-cli/internal/db"
	"github.com/triguard/subro-cli/internal/store"
)

const (
	labelColumn = "subrogation"
	claimColumn = "claim_number"
)

func initStore(ctx context.Context) (store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		path = "subro.db"
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// loadTables reads the five source tables from the configured backend.
func loadTables(ctx context.Context) (*dataset.Tables, error) {
	switch cfg.Data.Source {
	case "csv":
		return dataset.ReadCSVDir(cfg.Data.Dir)
	case "xlsx":
		return dataset.ReadWorkbook(cfg.Data.Workbook)
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.Data.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return dataset.LoadPostgres(ctx, pool, cfg.Data.Schema)
	default:
		return nil, eris.Errorf("unsupported data source: %s", cfg.Data.Source)
	}
}

// loadMerged loads and joins the source tables into the analytic table.
func loadMerged(ctx context.Context) (*dataset.Table, error) {
	tables, err := loadTables(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load tables")
	}
	merged, err := dataset.Merge(tables)
	if err != nil {
		return nil, eris.Wrap(err, "merge tables")
	}
	zap.L().Info("tables merged",
		zap.Int("rows", merged.NumRows()),
		zap.Int("columns", len(merged.Columns)),
	)
	return merged, nil
}
