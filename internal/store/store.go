// Package store persists channel configuration, caption presets and
// playback history in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/overlaylabs/stagecast/internal/config"
	_ "modernc.org/sqlite"
)

// Channel is one configured display surface.
type Channel struct {
	Name      string
	Preset    string
	CreatedAt time.Time
}

// Preset is a named caption style applied at text stream start.
type Preset struct {
	Name          string
	FontFamily    string
	FontSize      int
	Color         string
	StrokeColor   string
	StrokeWidth   int
	PositionX     float64
	PositionY     float64
	InstantReveal bool
}

// Utterance records one finished or interrupted speech run on a channel.
type Utterance struct {
	ID           int64
	Channel      string
	SessionID    string
	Text         string
	SpokenText   string
	WordCount    int
	PlaybackTime float64
	Interrupted  bool
	CreatedAt    time.Time
}

// PlaybackEntry is one raw event from a display surface.
type PlaybackEntry struct {
	ID        int64
	Channel   string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS channels (
    name TEXT PRIMARY KEY,
    preset TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS presets (
    name TEXT PRIMARY KEY,
    font_family TEXT,
    font_size INTEGER,
    color TEXT,
    stroke_color TEXT,
    stroke_width INTEGER,
    position_x REAL,
    position_y REAL,
    instant_reveal INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS playback_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    channel TEXT NOT NULL,
    event_type TEXT,
    payload BLOB,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_playback_channel_created ON playback_log(channel, created_at);
CREATE TABLE IF NOT EXISTS utterances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    channel TEXT NOT NULL,
    session_id TEXT,
    text TEXT,
    spoken_text TEXT,
    word_count INTEGER,
    playback_time REAL,
    interrupted INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_utterances_channel_created ON utterances(channel, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertChannel registers a display surface, optionally bound to a preset.
func (s *Store) UpsertChannel(ctx context.Context, name, preset string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels(name, preset, created_at) VALUES(?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET preset=excluded.preset`,
		name, preset, s.clock().UTC())
	return err
}

// ChannelExists reports whether a surface has stored configuration.
func (s *Store) ChannelExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM channels WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListChannels returns all configured surfaces in name order.
func (s *Store) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, preset, created_at FROM channels ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		var created string
		if err := rows.Scan(&c.Name, &c.Preset, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			c.CreatedAt = ts
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (s *Store) DeleteChannel(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE name = ?`, name)
	return err
}

// UpsertPreset stores a named caption style.
func (s *Store) UpsertPreset(ctx context.Context, p Preset) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO presets(name, font_family, font_size, color, stroke_color, stroke_width, position_x, position_y, instant_reveal)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   font_family=excluded.font_family, font_size=excluded.font_size,
		   color=excluded.color, stroke_color=excluded.stroke_color,
		   stroke_width=excluded.stroke_width, position_x=excluded.position_x,
		   position_y=excluded.position_y, instant_reveal=excluded.instant_reveal`,
		p.Name, p.FontFamily, p.FontSize, p.Color, p.StrokeColor, p.StrokeWidth,
		p.PositionX, p.PositionY, p.InstantReveal)
	return err
}

// GetPreset looks up a caption style by name.
func (s *Store) GetPreset(ctx context.Context, name string) (Preset, error) {
	var p Preset
	err := s.db.QueryRowContext(ctx,
		`SELECT name, font_family, font_size, color, stroke_color, stroke_width, position_x, position_y, instant_reveal
		 FROM presets WHERE name = ?`, name).
		Scan(&p.Name, &p.FontFamily, &p.FontSize, &p.Color, &p.StrokeColor,
			&p.StrokeWidth, &p.PositionX, &p.PositionY, &p.InstantReveal)
	if err != nil {
		return Preset{}, err
	}
	return p, nil
}

// ChannelStyle resolves the preset bound to a channel. The second return is
// false when the channel has no preset or the preset does not exist.
func (s *Store) ChannelStyle(ctx context.Context, channel string) (Preset, bool, error) {
	var preset sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT preset FROM channels WHERE name = ?`, channel).Scan(&preset)
	if err == sql.ErrNoRows {
		return Preset{}, false, nil
	}
	if err != nil {
		return Preset{}, false, err
	}
	if !preset.Valid || preset.String == "" {
		return Preset{}, false, nil
	}
	p, err := s.GetPreset(ctx, preset.String)
	if err == sql.ErrNoRows {
		return Preset{}, false, nil
	}
	if err != nil {
		return Preset{}, false, err
	}
	return p, true, nil
}

// AppendPlayback writes one raw surface event into the playback log.
func (s *Store) AppendPlayback(ctx context.Context, channel, eventType string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playback_log(channel, event_type, payload, created_at) VALUES(?, ?, ?, ?)`,
		channel, eventType, payload, s.clock().UTC())
	return err
}

// RecordUtterance stores one finished or interrupted speech run.
func (s *Store) RecordUtterance(ctx context.Context, u Utterance) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO utterances(channel, session_id, text, spoken_text, word_count, playback_time, interrupted, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Channel, u.SessionID, u.Text, u.SpokenText, u.WordCount, u.PlaybackTime, u.Interrupted, u.CreatedAt)
	return err
}

// ListUtterances retrieves up to limit utterances for a channel, newest first.
func (s *Store) ListUtterances(ctx context.Context, channel string, limit int) ([]Utterance, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, session_id, text, spoken_text, word_count, playback_time, interrupted, created_at
		 FROM utterances WHERE channel = ? ORDER BY created_at DESC, id DESC LIMIT ?`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var utterances []Utterance
	for rows.Next() {
		var u Utterance
		var created string
		if err := rows.Scan(&u.ID, &u.Channel, &u.SessionID, &u.Text, &u.SpokenText,
			&u.WordCount, &u.PlaybackTime, &u.Interrupted, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			u.CreatedAt = ts
		}
		utterances = append(utterances, u)
	}
	return utterances, rows.Err()
}

// Prune applies configured retention to the playback log and utterances.
func (s *Store) Prune(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
		if _, err = tx.ExecContext(ctx, `DELETE FROM playback_log WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM utterances WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxLogEntries > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM playback_log WHERE id IN (
			SELECT id FROM playback_log ORDER BY id DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxLogEntries)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
