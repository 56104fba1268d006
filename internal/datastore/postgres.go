package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
	"github.com/lib/pq"
)

// PostgresSource reads the dataset from a table with columns
// manufacturer, model_year, mpg, acceleration
type PostgresSource struct {
	dsn     string
	table   string
	orderBy string
}

// NewPostgresSource creates a PostgreSQL source; table defaults to "cars", orderBy to "id"
func NewPostgresSource(dsn, table, orderBy string) *PostgresSource {
	if table == "" {
		table = "cars"
	}
	if orderBy == "" {
		orderBy = "id"
	}
	return &PostgresSource{dsn: dsn, table: table, orderBy: orderBy}
}

func (s *PostgresSource) Name() string {
	return "postgres:" + s.table
}

// Query returns the SELECT statement with quoted identifiers
func (s *PostgresSource) Query() string {
	return fmt.Sprintf(
		"SELECT manufacturer, model_year, mpg, acceleration FROM %s ORDER BY %s",
		pq.QuoteIdentifier(s.table),
		pq.QuoteIdentifier(s.orderBy),
	)
}

func (s *PostgresSource) Records(ctx context.Context) ([]models.CarRecord, error) {
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return nil, unreachable(fmt.Errorf("failed to open database: %w", err))
	}
	defer db.Close()

	// One load per process; a small pool is enough
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, unreachable(fmt.Errorf("failed to ping database: %w", err))
	}

	rows, err := db.QueryContext(ctx, s.Query())
	if err != nil {
		return nil, unreachable(fmt.Errorf("failed to query %s: %w", s.table, err))
	}
	defer rows.Close()

	var records []models.CarRecord
	for i := 0; rows.Next(); i++ {
		var (
			manufacturer sql.NullString
			year         sql.NullInt64
			mpg          sql.NullFloat64
			accel        sql.NullFloat64
		)
		if err := rows.Scan(&manufacturer, &year, &mpg, &accel); err != nil {
			return nil, malformed("row %d: %v", i, err)
		}
		if !manufacturer.Valid || manufacturer.String == "" {
			return nil, malformed("row %d: empty manufacturer", i)
		}
		if !year.Valid {
			return nil, malformed("row %d: empty model_year", i)
		}

		records = append(records, models.CarRecord{
			Manufacturer: manufacturer.String,
			ModelYear:    int(year.Int64),
			MPG:          nullFloat(mpg),
			Acceleration: nullFloat(accel),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, unreachable(fmt.Errorf("error iterating rows: %w", err))
	}
	return records, nil
}

func nullFloat(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
