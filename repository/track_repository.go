package repository

import (
	"context"
	"database/sql"
	"fmt"

	"EmberFM/core/fault"
	"EmberFM/model"
)

// TrackRepository defines the interface for catalog data operations.
type TrackRepository interface {
	GetTrackByID(ctx context.Context, id string) (*model.Track, error)
	ListTracks(ctx context.Context) ([]model.Track, error)
	CreateTrack(ctx context.Context, track *model.Track) error
	// ApplyVote increments the counter for the given direction as a
	// relative delta on the server side and writes the caller-computed
	// heat score in the same statement.
	ApplyVote(ctx context.Context, id string, direction model.VoteDirection, heatScore int) error
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	db *sql.DB
}

// NewMySQLTrackRepository creates a new mysqlTrackRepository.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{db: db}
}

const trackColumns = "id, title, artist, genre, cover_art_url, audio_url, preview_url, duration, upvotes, downvotes, heat_score, created_at, updated_at"

func scanTrack(row interface{ Scan(...interface{}) error }) (*model.Track, error) {
	t := &model.Track{}
	err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.Genre, &t.CoverArtURL, &t.AudioURL, &t.PreviewURL,
		&t.DurationSeconds, &t.Upvotes, &t.Downvotes, &t.HeatScore, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTrackByID retrieves a track by its ID.
func (r *mysqlTrackRepository) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	query := "SELECT " + trackColumns + " FROM tracks WHERE id = ?"
	track, err := scanTrack(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fault.Newf(fault.KindNotFound, "track %s not found", id)
		}
		return nil, fault.ClassifyMySQL(fmt.Errorf("failed to scan track row for ID %s: %w", id, err))
	}
	return track, nil
}

// ListTracks returns the catalog ordered by heat, hottest first.
func (r *mysqlTrackRepository) ListTracks(ctx context.Context) ([]model.Track, error) {
	query := "SELECT " + trackColumns + " FROM tracks ORDER BY heat_score DESC, created_at DESC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fault.ClassifyMySQL(fmt.Errorf("failed to list tracks: %w", err))
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fault.ClassifyMySQL(fmt.Errorf("failed to scan track row: %w", err))
		}
		tracks = append(tracks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.ClassifyMySQL(fmt.Errorf("failed to iterate track rows: %w", err))
	}
	return tracks, nil
}

// CreateTrack adds a new track to the catalog.
func (r *mysqlTrackRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	query := `INSERT INTO tracks (id, title, artist, genre, cover_art_url, audio_url, preview_url, duration, upvotes, downvotes, heat_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fault.ClassifyMySQL(fmt.Errorf("failed to prepare create track statement: %w", err))
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, track.ID, track.Title, track.Artist, track.Genre, track.CoverArtURL,
		track.AudioURL, track.PreviewURL, track.DurationSeconds, track.Upvotes, track.Downvotes, track.HeatScore)
	if err != nil {
		return fault.ClassifyMySQL(fmt.Errorf("failed to execute create track statement: %w", err))
	}
	return nil
}

// ApplyVote bumps the requested counter by one relative to whatever the
// server currently holds. The heat score is the one derived from the
// caller's snapshot; concurrent voters may race on it and the next
// catalog fetch reconciles.
func (r *mysqlTrackRepository) ApplyVote(ctx context.Context, id string, direction model.VoteDirection, heatScore int) error {
	column := "upvotes"
	if direction == model.VoteDown {
		column = "downvotes"
	}
	query := fmt.Sprintf("UPDATE tracks SET %s = %s + 1, heat_score = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", column, column)
	res, err := r.db.ExecContext(ctx, query, heatScore, id)
	if err != nil {
		return fault.ClassifyMySQL(fmt.Errorf("failed to apply %s vote to track %s: %w", direction, id, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fault.ClassifyMySQL(fmt.Errorf("failed to read rows affected for track %s: %w", id, err))
	}
	if affected == 0 {
		return fault.Newf(fault.KindNotFound, "track %s not found", id)
	}
	return nil
}
