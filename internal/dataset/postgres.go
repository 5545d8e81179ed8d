package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Querier is the subset of pgxpool.Pool used by the loader. pgxmock
// satisfies it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres loads the five source tables from the staging schema. Table
// names are the lowercased canonical names (stg.claim, stg.accident, ...).
func LoadPostgres(ctx context.Context, q Querier, schema string) (*Tables, error) {
	if schema == "" {
		schema = "stg"
	}

	var ts Tables
	for _, name := range TableNames {
		t, err := loadTable(ctx, q, schema, name)
		if err != nil {
			return nil, err
		}
		*ts.byName(name) = t
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return &ts, nil
}

func loadTable(ctx context.Context, q Querier, schema, name string) (*Table, error) {
	rel := strings.ToLower(name)
	sql := fmt.Sprintf(`SELECT * FROM %s.%s`, pgx.Identifier{schema}.Sanitize(), pgx.Identifier{rel}.Sanitize())

	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: query %s.%s", schema, rel)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	t := New(name, columns)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: scan %s.%s", schema, rel)
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = stringify(v)
		}
		t.Append(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "dataset: iterate %s.%s", schema, rel)
	}
	return t, nil
}

// stringify renders a driver value the way the CSV path would see it.
// NULL becomes the empty cell.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}
