// Package archive keeps the parsed records of every accepted upload in a DuckDB
// file so earlier uploads can be listed, inspected and re-rendered without parsing
// them again.
package archive

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/marcboeker/go-duckdb"
	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/models"
	"github.com/rs/zerolog"
)

// ErrNotArchived is returned for file IDs with no archived records.
var ErrNotArchived = errors.New("no archived records for file")

// Options tunes the DuckDB connection.
type Options struct {
	Threads     int    // PRAGMA threads, 0 keeps the DuckDB default
	MemoryLimit string // PRAGMA memory_limit, e.g. "512MB"
}

// Summary describes one archived upload.
type Summary struct {
	FileID      string    `json:"fileId"`
	Name        string    `json:"name"`
	RecordCount int       `json:"recordCount"`
	IssueCount  int       `json:"issueCount"`
	MaxDuration float64   `json:"maxDuration"`
	ArchivedAt  time.Time `json:"archivedAt"`
}

// RecordArchive stores record sets keyed by file ID.
type RecordArchive struct {
	db   *sql.DB
	path string
	log  zerolog.Logger

	// DuckDB allows one writer at a time per database.
	writeMu sync.Mutex
}

// Open opens or creates the archive at path. An empty path opens an in-memory database.
func Open(path string, opts Options) (*RecordArchive, error) {
	log := logging.For("archive")

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{"PRAGMA enable_progress_bar=false"}
		if opts.Threads > 0 {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
		}
		if opts.MemoryLimit != "" {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS files (
			file_id      VARCHAR PRIMARY KEY,
			name         VARCHAR NOT NULL,
			header       VARCHAR NOT NULL,
			issues       VARCHAR NOT NULL,
			record_count INTEGER NOT NULL,
			archived_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			file_id   VARCHAR NOT NULL,
			idx       INTEGER NOT NULL,
			line      INTEGER NOT NULL,
			location  VARCHAR,
			longitude DOUBLE,
			latitude  DOUBLE,
			duration  DOUBLE NOT NULL,
			fields    VARCHAR NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create archive schema: %w", err)
		}
	}

	log.Debug().Str("path", path).Msg("record archive opened")
	return &RecordArchive{db: db, path: path, log: log}, nil
}

// Put archives the records of a file, replacing any earlier copy.
func (a *RecordArchive) Put(ctx context.Context, fileID, name string, set *models.RecordSet) error {
	if set == nil {
		set = models.NewRecordSet()
	}

	header, err := sonic.MarshalString(set.Header)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	issues, err := sonic.MarshalString(set.Issues)
	if err != nil {
		return fmt.Errorf("encoding issues: %w", err)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.deleteLocked(ctx, fileID); err != nil {
		return err
	}

	start := time.Now()
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "records")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for _, rec := range set.Records {
			fields, err := sonic.MarshalString(rec.Fields)
			if err != nil {
				return fmt.Errorf("encoding fields of line %d: %w", rec.Line, err)
			}
			err = appender.AppendRow(
				fileID,
				int32(rec.Index),
				int32(rec.Line),
				rec.Location,
				nullableFloat(rec.Longitude),
				nullableFloat(rec.Latitude),
				rec.Duration,
				fields,
			)
			if err != nil {
				return fmt.Errorf("failed to append line %d: %w", rec.Line, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO files (file_id, name, header, issues, record_count, archived_at) VALUES (?, ?, ?, ?, ?, ?)`,
		fileID, name, header, issues, set.Len(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording archived file: %w", err)
	}

	a.log.Debug().
		Str("file", fileID).
		Int("records", set.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("records archived")
	return nil
}

// Records rebuilds the archived record set of a file.
func (a *RecordArchive) Records(ctx context.Context, fileID string) (*models.RecordSet, error) {
	var header, issues string
	err := a.db.QueryRowContext(ctx,
		`SELECT header, issues FROM files WHERE file_id = ?`, fileID).Scan(&header, &issues)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotArchived, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying archived file: %w", err)
	}

	set := models.NewRecordSet()
	if err := sonic.UnmarshalString(header, &set.Header); err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}
	if err := sonic.UnmarshalString(issues, &set.Issues); err != nil {
		return nil, fmt.Errorf("decoding issues: %w", err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT idx, line, fields FROM records WHERE file_id = ? ORDER BY idx`, fileID)
	if err != nil {
		return nil, fmt.Errorf("querying archived records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx, line int32
		var raw string
		if err := rows.Scan(&idx, &line, &raw); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		fields := make(map[string]string)
		if err := sonic.UnmarshalString(raw, &fields); err != nil {
			return nil, fmt.Errorf("decoding fields of line %d: %w", line, err)
		}
		set.Records = append(set.Records, models.NewRecord(int(idx), int(line), fields))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Recent lists archived files, newest first.
func (a *RecordArchive) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT f.file_id, f.name, f.record_count, f.issues, COALESCE(MAX(r.duration), 0), f.archived_at
		FROM files f LEFT JOIN records r ON r.file_id = f.file_id
		GROUP BY f.file_id, f.name, f.record_count, f.issues, f.archived_at
		ORDER BY f.archived_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent files: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var count int32
		var issues string
		if err := rows.Scan(&s.FileID, &s.Name, &count, &issues, &s.MaxDuration, &s.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		s.RecordCount = int(count)
		var decoded []models.ParseIssue
		if err := sonic.UnmarshalString(issues, &decoded); err == nil {
			s.IssueCount = len(decoded)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a file's archived records. Deleting an unknown file is not an error.
func (a *RecordArchive) Delete(ctx context.Context, fileID string) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.deleteLocked(ctx, fileID)
}

func (a *RecordArchive) deleteLocked(ctx context.Context, fileID string) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM records WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("deleting archived records: %w", err)
	}
	if _, err := a.db.ExecContext(ctx, `DELETE FROM files WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("deleting archived file: %w", err)
	}
	return nil
}

// Path returns the database location, empty when in memory.
func (a *RecordArchive) Path() string {
	return a.path
}

// Close releases the database.
func (a *RecordArchive) Close() error {
	return a.db.Close()
}

func nullableFloat(f float64) driver.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
