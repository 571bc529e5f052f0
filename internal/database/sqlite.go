package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"matchup-go/internal/database/migrations"
	"matchup-go/internal/matchup"
)

// SQLiteRegistry implements matchup.Registry using SQLite.
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

var _ matchup.Registry = (*SQLiteRegistry)(nil)

// NewSQLiteRegistry opens a registry and brings its schema up to date.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating registry schema: %w", err)
	}
	return &SQLiteRegistry{db: db, path: path}, nil
}

// NewSQLiteRegistryFromDB wraps an existing, already migrated connection.
func NewSQLiteRegistryFromDB(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	// Foreign keys are a per-connection setting, so they go in the DSN
	// rather than a one-off PRAGMA.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every new connection to :memory: would be a fresh, empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteRegistry) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func rowsAffected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Team operations

func (s *SQLiteRegistry) CreateTeam(ctx context.Context, team *matchup.Team) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?)",
		team.ID, team.Name, team.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return matchup.NewNameAlreadyExists("team", team.Name)
		}
		return fmt.Errorf("inserting team: %w", err)
	}
	return nil
}

func (s *SQLiteRegistry) FindTeam(ctx context.Context, name string) (*matchup.Team, error) {
	var t matchup.Team
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM teams WHERE name = ?", name).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding team: %w", err)
	}
	return &t, nil
}

func (s *SQLiteRegistry) ListTeams(ctx context.Context) ([]*matchup.Team, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM teams ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []*matchup.Team
	for rows.Next() {
		var t matchup.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, &t)
	}
	return teams, rows.Err()
}

func (s *SQLiteRegistry) DeleteTeam(ctx context.Context, name string) (bool, error) {
	ok, err := rowsAffected(s.db.ExecContext(ctx, "DELETE FROM teams WHERE name = ?", name))
	if err != nil {
		return false, fmt.Errorf("deleting team: %w", err)
	}
	return ok, nil
}

// Hitter and pitcher operations share a table shape.

type person struct {
	id, name  string
	team      sql.NullString
	createdAt time.Time
}

func (s *SQLiteRegistry) createPerson(ctx context.Context, table, kind string, p person) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+table+" (id, name, team_name, created_at) VALUES (?, ?, ?, ?)",
		p.id, p.name, p.team, p.createdAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return matchup.NewNameAlreadyExists(kind, p.name)
		}
		if isForeignKeyViolation(err) {
			return matchup.NewNotFound("team", p.team.String)
		}
		return fmt.Errorf("inserting %s: %w", kind, err)
	}
	return nil
}

func (s *SQLiteRegistry) findPerson(ctx context.Context, table, name string) (*person, error) {
	var p person
	err := s.db.QueryRowContext(ctx, "SELECT id, name, team_name, created_at FROM "+table+" WHERE name = ?", name).
		Scan(&p.id, &p.name, &p.team, &p.createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding in %s: %w", table, err)
	}
	return &p, nil
}

func (s *SQLiteRegistry) listPeople(ctx context.Context, table string) ([]person, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, team_name, created_at FROM "+table+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	defer rows.Close()

	var out []person
	for rows.Next() {
		var p person
		if err := rows.Scan(&p.id, &p.name, &p.team, &p.createdAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteRegistry) deletePerson(ctx context.Context, table, name string) (bool, error) {
	ok, err := rowsAffected(s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE name = ?", name))
	if err != nil {
		return false, fmt.Errorf("deleting from %s: %w", table, err)
	}
	return ok, nil
}

func (s *SQLiteRegistry) CreateHitter(ctx context.Context, h *matchup.Hitter) error {
	return s.createPerson(ctx, "hitters", "hitter", person{id: h.ID, name: h.Name, team: nullString(h.TeamName), createdAt: h.CreatedAt})
}

func (s *SQLiteRegistry) FindHitter(ctx context.Context, name string) (*matchup.Hitter, error) {
	p, err := s.findPerson(ctx, "hitters", name)
	if err != nil || p == nil {
		return nil, err
	}
	return &matchup.Hitter{ID: p.id, Name: p.name, TeamName: p.team.String, CreatedAt: p.createdAt}, nil
}

func (s *SQLiteRegistry) ListHitters(ctx context.Context) ([]*matchup.Hitter, error) {
	people, err := s.listPeople(ctx, "hitters")
	if err != nil {
		return nil, err
	}
	out := make([]*matchup.Hitter, 0, len(people))
	for _, p := range people {
		out = append(out, &matchup.Hitter{ID: p.id, Name: p.name, TeamName: p.team.String, CreatedAt: p.createdAt})
	}
	return out, nil
}

func (s *SQLiteRegistry) DeleteHitter(ctx context.Context, name string) (bool, error) {
	return s.deletePerson(ctx, "hitters", name)
}

func (s *SQLiteRegistry) CreatePitcher(ctx context.Context, p *matchup.Pitcher) error {
	return s.createPerson(ctx, "pitchers", "pitcher", person{id: p.ID, name: p.Name, team: nullString(p.TeamName), createdAt: p.CreatedAt})
}

func (s *SQLiteRegistry) FindPitcher(ctx context.Context, name string) (*matchup.Pitcher, error) {
	p, err := s.findPerson(ctx, "pitchers", name)
	if err != nil || p == nil {
		return nil, err
	}
	return &matchup.Pitcher{ID: p.id, Name: p.name, TeamName: p.team.String, CreatedAt: p.createdAt}, nil
}

func (s *SQLiteRegistry) ListPitchers(ctx context.Context) ([]*matchup.Pitcher, error) {
	people, err := s.listPeople(ctx, "pitchers")
	if err != nil {
		return nil, err
	}
	out := make([]*matchup.Pitcher, 0, len(people))
	for _, p := range people {
		out = append(out, &matchup.Pitcher{ID: p.id, Name: p.name, TeamName: p.team.String, CreatedAt: p.createdAt})
	}
	return out, nil
}

func (s *SQLiteRegistry) DeletePitcher(ctx context.Context, name string) (bool, error) {
	return s.deletePerson(ctx, "pitchers", name)
}

// Swing operations

const swingColumns = "id, hitter_name, idx, clip_key, start_frame, contact_frame, fps, description, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSwing(row scanner) (*matchup.Swing, error) {
	var sw matchup.Swing
	var start, contact int
	if err := row.Scan(&sw.ID, &sw.HitterName, &sw.Index, &sw.ClipKey, &start, &contact, &sw.FPS, &sw.Description, &sw.CreatedAt); err != nil {
		return nil, err
	}
	sw.StartFrame = matchup.SourceFrame(start)
	sw.ContactFrame = matchup.SourceFrame(contact)
	return &sw, nil
}

func (s *SQLiteRegistry) InsertSwing(ctx context.Context, sw *matchup.Swing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(idx), 0) + 1 FROM swings WHERE hitter_name = ?", sw.HitterName).Scan(&next); err != nil {
		return fmt.Errorf("allocating swing index: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO swings ("+swingColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sw.ID, sw.HitterName, next, sw.ClipKey, int(sw.StartFrame), int(sw.ContactFrame), sw.FPS, sw.Description, sw.CreatedAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return matchup.NewNotFound("hitter", sw.HitterName)
		}
		return fmt.Errorf("inserting swing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	sw.Index = next
	return nil
}

func (s *SQLiteRegistry) FindSwing(ctx context.Context, id string) (*matchup.Swing, error) {
	sw, err := scanSwing(s.db.QueryRowContext(ctx, "SELECT "+swingColumns+" FROM swings WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding swing: %w", err)
	}
	return sw, nil
}

func (s *SQLiteRegistry) FindSwingByIndex(ctx context.Context, hitterName string, index int) (*matchup.Swing, error) {
	sw, err := scanSwing(s.db.QueryRowContext(ctx,
		"SELECT "+swingColumns+" FROM swings WHERE hitter_name = ? AND idx = ?", hitterName, index))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding swing by index: %w", err)
	}
	return sw, nil
}

func (s *SQLiteRegistry) ListSwings(ctx context.Context, hitterName string) ([]*matchup.Swing, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+swingColumns+" FROM swings WHERE hitter_name = ? ORDER BY idx", hitterName)
	if err != nil {
		return nil, fmt.Errorf("listing swings: %w", err)
	}
	defer rows.Close()

	var out []*matchup.Swing
	for rows.Next() {
		sw, err := scanSwing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning swing: %w", err)
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

func (s *SQLiteRegistry) DeleteSwing(ctx context.Context, id string) (bool, error) {
	ok, err := rowsAffected(s.db.ExecContext(ctx, "DELETE FROM swings WHERE id = ?", id))
	if err != nil {
		return false, fmt.Errorf("deleting swing: %w", err)
	}
	return ok, nil
}

// Pitch operations

const pitchColumns = "id, pitcher_name, idx, clip_key, source_contact, trim_start, trim_end, clip_contact, clip_frames, fps, description, created_at"

func scanPitch(row scanner) (*matchup.Pitch, error) {
	var p matchup.Pitch
	var contact, start, end, clipContact int
	if err := row.Scan(&p.ID, &p.PitcherName, &p.Index, &p.ClipKey, &contact, &start, &end, &clipContact,
		&p.ClipFrames, &p.FPS, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.SourceContact = matchup.SourceFrame(contact)
	p.TrimStart = matchup.SourceFrame(start)
	p.TrimEnd = matchup.SourceFrame(end)
	p.ClipContact = matchup.ClipFrame(clipContact)
	return &p, nil
}

func (s *SQLiteRegistry) InsertPitch(ctx context.Context, p *matchup.Pitch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(idx), 0) + 1 FROM pitches WHERE pitcher_name = ?", p.PitcherName).Scan(&next); err != nil {
		return fmt.Errorf("allocating pitch index: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO pitches ("+pitchColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.PitcherName, next, p.ClipKey, int(p.SourceContact), int(p.TrimStart), int(p.TrimEnd),
		int(p.ClipContact), p.ClipFrames, p.FPS, p.Description, p.CreatedAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return matchup.NewNotFound("pitcher", p.PitcherName)
		}
		return fmt.Errorf("inserting pitch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	p.Index = next
	return nil
}

func (s *SQLiteRegistry) FindPitch(ctx context.Context, id string) (*matchup.Pitch, error) {
	p, err := scanPitch(s.db.QueryRowContext(ctx, "SELECT "+pitchColumns+" FROM pitches WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding pitch: %w", err)
	}
	return p, nil
}

func (s *SQLiteRegistry) FindPitchByIndex(ctx context.Context, pitcherName string, index int) (*matchup.Pitch, error) {
	p, err := scanPitch(s.db.QueryRowContext(ctx,
		"SELECT "+pitchColumns+" FROM pitches WHERE pitcher_name = ? AND idx = ?", pitcherName, index))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding pitch by index: %w", err)
	}
	return p, nil
}

func (s *SQLiteRegistry) ListPitches(ctx context.Context, pitcherName string) ([]*matchup.Pitch, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+pitchColumns+" FROM pitches WHERE pitcher_name = ? ORDER BY idx", pitcherName)
	if err != nil {
		return nil, fmt.Errorf("listing pitches: %w", err)
	}
	defer rows.Close()

	var out []*matchup.Pitch
	for rows.Next() {
		p, err := scanPitch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pitch: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteRegistry) DeletePitch(ctx context.Context, id string) (bool, error) {
	ok, err := rowsAffected(s.db.ExecContext(ctx, "DELETE FROM pitches WHERE id = ?", id))
	if err != nil {
		return false, fmt.Errorf("deleting pitch: %w", err)
	}
	return ok, nil
}

// Matchup operations

// matchupSelect joins in the names and ordinals a record displays.
const matchupSelect = `
	SELECT m.id, m.swing_id, m.pitch_id, s.hitter_name, s.idx, p.pitcher_name, p.idx,
	       m.clip_key, m.variant, m.offset_frames, m.clamped, m.total_frames, m.created_at
	FROM matchups m
	JOIN swings s ON s.id = m.swing_id
	JOIN pitches p ON p.id = m.pitch_id`

func scanMatchup(row scanner) (*matchup.MatchupRecord, error) {
	var m matchup.MatchupRecord
	var variant string
	var offset int
	if err := row.Scan(&m.ID, &m.SwingID, &m.PitchID, &m.HitterName, &m.SwingIndex, &m.PitcherName, &m.PitchIndex,
		&m.ClipKey, &variant, &offset, &m.Clamped, &m.TotalFrames, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Variant = matchup.Variant(variant)
	m.Offset = matchup.TimelineFrame(offset)
	return &m, nil
}

func (s *SQLiteRegistry) queryMatchups(ctx context.Context, where string, args ...any) ([]*matchup.MatchupRecord, error) {
	q := matchupSelect
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY m.created_at DESC, m.id"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing matchups: %w", err)
	}
	defer rows.Close()

	var out []*matchup.MatchupRecord
	for rows.Next() {
		m, err := scanMatchup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning matchup: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteRegistry) PutMatchup(ctx context.Context, rec *matchup.MatchupRecord) (*matchup.MatchupRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	prev, err := scanMatchup(tx.QueryRowContext(ctx,
		matchupSelect+" WHERE m.swing_id = ? AND m.pitch_id = ? AND m.variant = ?",
		rec.SwingID, rec.PitchID, string(rec.Variant)))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("finding previous matchup: %w", err)
		}
		prev = nil
	}
	if prev != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM matchups WHERE id = ?", prev.ID); err != nil {
			return nil, fmt.Errorf("replacing matchup: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matchups (id, swing_id, pitch_id, clip_key, variant, offset_frames, clamped, total_frames, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SwingID, rec.PitchID, rec.ClipKey, string(rec.Variant), int(rec.Offset), rec.Clamped, rec.TotalFrames, rec.CreatedAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, matchup.NewNotFound("swing or pitch", rec.SwingID+"/"+rec.PitchID)
		}
		return nil, fmt.Errorf("inserting matchup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return prev, nil
}

func (s *SQLiteRegistry) FindMatchup(ctx context.Context, swingID, pitchID string, variant matchup.Variant) (*matchup.MatchupRecord, error) {
	m, err := scanMatchup(s.db.QueryRowContext(ctx,
		matchupSelect+" WHERE m.swing_id = ? AND m.pitch_id = ? AND m.variant = ?", swingID, pitchID, string(variant)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding matchup: %w", err)
	}
	return m, nil
}

func (s *SQLiteRegistry) ListMatchups(ctx context.Context) ([]*matchup.MatchupRecord, error) {
	return s.queryMatchups(ctx, "")
}

func (s *SQLiteRegistry) ListMatchupsForSwing(ctx context.Context, swingID string) ([]*matchup.MatchupRecord, error) {
	return s.queryMatchups(ctx, "m.swing_id = ?", swingID)
}

func (s *SQLiteRegistry) ListMatchupsForPitch(ctx context.Context, pitchID string) ([]*matchup.MatchupRecord, error) {
	return s.queryMatchups(ctx, "m.pitch_id = ?", pitchID)
}

func (s *SQLiteRegistry) DeleteMatchup(ctx context.Context, id string) (bool, error) {
	ok, err := rowsAffected(s.db.ExecContext(ctx, "DELETE FROM matchups WHERE id = ?", id))
	if err != nil {
		return false, fmt.Errorf("deleting matchup: %w", err)
	}
	return ok, nil
}

func (s *SQLiteRegistry) ReferencedClipKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT clip_key FROM swings
		UNION SELECT clip_key FROM pitches
		UNION SELECT clip_key FROM matchups
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("listing referenced clip keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning clip key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
