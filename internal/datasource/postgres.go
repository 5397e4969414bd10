package datasource

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen"
)

// Querier runs a query. It is satisfied by *pgxpool.Pool and *pgx.Conn.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SQLSource turns query results into loop records.
type SQLSource struct {
	db     Querier
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens a connection pool for dsn and checks it with a ping.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*SQLSource, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	poolConfig.MaxConns = 4
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewSQLSource(pool, logger)
	s.pool = pool
	return s, nil
}

// NewSQLSource wraps an existing connection.
func NewSQLSource(db Querier, logger *zap.Logger) *SQLSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLSource{db: db, logger: logger}
}

// Close releases the pool opened by Connect
func (s *SQLSource) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Records runs query and returns one record per row, keyed by column name.
//
// Timestamps are formatted as RFC 3339 (dates without a time of day as
// YYYY-MM-DD), UUIDs in their canonical form, bytea columns become images and
// JSON objects are flattened into dotted names.
func (s *SQLSource) Records(ctx context.Context, query string, args ...any) ([]docxgen.Context, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var records []docxgen.Context
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records)+1, err)
		}
		raw := make(map[string]interface{}, len(fields))
		for i, f := range fields {
			if i < len(values) {
				raw[f.Name] = normalize(values[i])
			}
		}
		rec, err := docxgen.FromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	s.logger.Debug("query loaded",
		zap.Int("rows", len(records)),
		zap.Duration("duration", time.Since(start)))
	return records, nil
}

// Bind runs query and binds its records under name.
func (s *SQLSource) Bind(ctx context.Context, name, query string, args ...any) (docxgen.Context, error) {
	records, err := s.Records(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return docxgen.Context{name: docxgen.List(records...)}, nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(val).String()
	case []byte:
		return docxgen.Image{Data: val}
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case uint32:
		return uint64(val)
	case []any:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil || dv == nil {
			return nil
		}
		return normalize(dv)
	default:
		return v
	}
}
