package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nijaru/clipzaar/models"
	"github.com/nijaru/clipzaar/pipeline"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const schema = `CREATE TABLE IF NOT EXISTS transcripts (
	video_id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	text TEXT NOT NULL,
	segments TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Store is a sqlite-backed transcript cache keyed by video ID.
type Store struct {
	db *sql.DB
}

var _ pipeline.TranscriptCache = (*Store)(nil)

func Open(dbPath string) (*Store, error) {
	logrus.WithField("path", dbPath).Info("Initializing database")

	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "error creating directory for database")
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "error opening database")
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "error creating table")
	}

	return &Store{db: conn}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, videoID string) (pipeline.CachedTranscript, bool, error) {
	var (
		entry    pipeline.CachedTranscript
		segments string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT video_id, title, duration_seconds, text, segments FROM transcripts WHERE video_id = ?", videoID,
	).Scan(&entry.VideoID, &entry.Title, &entry.DurationSeconds, &entry.Transcript.Text, &segments)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pipeline.CachedTranscript{}, false, nil
		}
		return pipeline.CachedTranscript{}, false, errors.Wrap(err, "error querying database")
	}

	if err := json.Unmarshal([]byte(segments), &entry.Transcript.Segments); err != nil {
		return pipeline.CachedTranscript{}, false, errors.Wrapf(err, "error decoding segments for %s", videoID)
	}
	if len(entry.Transcript.Segments) == 0 {
		entry.Transcript.Segments = nil
	}
	return entry, true, nil
}

func (s *Store) Put(ctx context.Context, entry pipeline.CachedTranscript) error {
	segments := entry.Transcript.Segments
	if segments == nil {
		segments = []models.Segment{}
	}
	encoded, err := json.Marshal(segments)
	if err != nil {
		return errors.Wrap(err, "error encoding segments")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO transcripts (video_id, title, duration_seconds, text, segments)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(video_id) DO UPDATE SET
				title = excluded.title,
				duration_seconds = excluded.duration_seconds,
				text = excluded.text,
				segments = excluded.segments,
				updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return errors.Wrap(err, "error preparing statement")
		}
		defer stmt.Close()

		if _, err := stmt.ExecContext(ctx, entry.VideoID, entry.Title, entry.DurationSeconds, entry.Transcript.Text, string(encoded)); err != nil {
			return errors.Wrap(err, "error executing statement")
		}
		return nil
	})
}

// Delete drops a cached transcript. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, videoID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM transcripts WHERE video_id = ?", videoID); err != nil {
			return errors.Wrap(err, "error executing delete statement")
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error beginning transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "error committing transaction")
	}
	return nil
}
