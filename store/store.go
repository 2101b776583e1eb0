// Package store persists users, tracked routes and price history.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"avia-price-bot/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTrackNotFound is returned when a track does not exist or is not
// owned by the requesting user.
var ErrTrackNotFound = errors.New("track not found")

// Error marks a storage-layer fault. Callers can pick it out with
// errors.As and treat it differently from parse or ownership errors.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// Store is the track store backed by gorm. Construct one with New
// and hand it to the orchestrator and the bot.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the backing tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&model.User{}, &model.Track{}, &model.PriceObservation{}); err != nil {
		return wrap("migrate", err)
	}
	// Enforce at most one active track per (user, route) at the row
	// level; concurrent registrations then serialize on the index
	// instead of racing the existence check.
	err := s.db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_tracks_user_route_active ON tracks(user_id, route) WHERE active",
	).Error
	if err != nil {
		return wrap("migrate", err)
	}
	return nil
}

// UpsertUser inserts the user or refreshes its display metadata.
func (s *Store) UpsertUser(ctx context.Context, u *model.User) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return wrap("upsert user", err)
	}
	return nil
}

// RegisterTrack adds a route for tracking. Registration is
// idempotent: if the user already has an active track with the exact
// same route string, the existing track is returned and created is
// false.
func (s *Store) RegisterTrack(ctx context.Context, userID int64, route, origin, destination string) (track *model.Track, created bool, err error) {
	db := s.db.WithContext(ctx)

	var existing model.Track
	res := db.Where("user_id = ? AND route = ? AND active = ?", userID, route, true).
		Limit(1).Find(&existing)
	if res.Error != nil {
		return nil, false, wrap("register track", res.Error)
	}
	if res.RowsAffected > 0 {
		return &existing, false, nil
	}

	t := model.Track{
		UserID:      userID,
		Route:       route,
		Origin:      origin,
		Destination: destination,
		Active:      true,
	}
	if err := db.Create(&t).Error; err != nil {
		// A concurrent registration of the same route may have won
		// the unique index; return its row if so.
		res := db.Where("user_id = ? AND route = ? AND active = ?", userID, route, true).
			Limit(1).Find(&existing)
		if res.Error == nil && res.RowsAffected > 0 {
			return &existing, false, nil
		}
		return nil, false, wrap("register track", err)
	}
	return &t, true, nil
}

// ListActiveTracks returns the user's active tracks, newest first.
func (s *Store) ListActiveTracks(ctx context.Context, userID int64) ([]model.Track, error) {
	var tracks []model.Track
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at DESC, id DESC").
		Find(&tracks).Error
	if err != nil {
		return nil, wrap("list active tracks", err)
	}
	return tracks, nil
}

// GetTrack fetches one active track owned by the user.
func (s *Store) GetTrack(ctx context.Context, trackID, userID int64) (*model.Track, error) {
	var t model.Track
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND active = ?", trackID, userID, true).
		Limit(1).Find(&t)
	if res.Error != nil {
		return nil, wrap("get track", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTrackNotFound
	}
	return &t, nil
}

// RecordObservation appends a price reading and folds it into the
// track's cached minimum. History insert and track update commit in
// one transaction; the CASE update keeps MinPrice monotonically
// non-increasing and is safe under concurrent checkers.
func (s *Store) RecordObservation(ctx context.Context, trackID int64, price float64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		obs := model.PriceObservation{TrackID: trackID, Price: price, FoundAt: time.Now()}
		if err := tx.Create(&obs).Error; err != nil {
			return err
		}
		return tx.Model(&model.Track{}).Where("id = ?", trackID).
			Updates(map[string]interface{}{
				"min_price": gorm.Expr(
					"CASE WHEN min_price IS NULL OR ? < min_price THEN ? ELSE min_price END",
					price, price),
				"last_check": time.Now(),
			}).Error
	})
	if err != nil {
		return wrap("record observation", err)
	}
	return nil
}

// Deactivate soft-deletes a track if it belongs to the user. The row
// and its history stay; the track just drops out of listings and
// future checks. Returns whether anything changed.
func (s *Store) Deactivate(ctx context.Context, trackID, userID int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Track{}).
		Where("id = ? AND user_id = ? AND active = ?", trackID, userID, true).
		Update("active", false)
	if res.Error != nil {
		return false, wrap("deactivate track", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ActiveUserIDs returns every user with at least one active track.
func (s *Store) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.Track{}).
		Where("active = ?", true).
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, wrap("active user ids", err)
	}
	return ids, nil
}

// Observations returns a track's full price history, oldest first.
func (s *Store) Observations(ctx context.Context, trackID int64) ([]model.PriceObservation, error) {
	var obs []model.PriceObservation
	err := s.db.WithContext(ctx).
		Where("track_id = ?", trackID).
		Order("id").
		Find(&obs).Error
	if err != nil {
		return nil, wrap("observations", err)
	}
	return obs, nil
}
