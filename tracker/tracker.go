// Package tracker runs price checks over tracked routes and decides
// when a price-drop notification is due.
package tracker

import (
	"context"
	"log/slog"

	"avia-price-bot/aviasales"
	"avia-price-bot/model"
	"avia-price-bot/route"
)

// PriceDropEvent is emitted when a batch check observes a price
// strictly below a track's previous recorded minimum.
type PriceDropEvent struct {
	UserID   int64
	Route    string
	OldPrice float64
	NewPrice float64
	Savings  float64
}

// Notifier delivers price-drop events. Delivery is fire-and-forget:
// a failed send never rolls back recorded observations.
type Notifier interface {
	NotifyPriceDrop(userID int64, ev PriceDropEvent) error
}

// Resolver is the fare lookup collaborator; *aviasales.Resolver
// implements it.
type Resolver interface {
	Resolve(ctx context.Context, routeText, origin, destination string) aviasales.PriceResult
}

// Store is the slice of the track store the orchestrator needs.
// *store.Store implements it.
type Store interface {
	ListActiveTracks(ctx context.Context, userID int64) ([]model.Track, error)
	GetTrack(ctx context.Context, trackID, userID int64) (*model.Track, error)
	RecordObservation(ctx context.Context, trackID int64, price float64) error
	ActiveUserIDs(ctx context.Context) ([]int64, error)
}

// CheckItem is one line of a check report.
type CheckItem struct {
	TrackID  int64
	Route    string
	Price    float64
	Source   aviasales.Source
	Resolved bool
}

// CheckReport sums up an interactive check for a single user.
type CheckReport struct {
	UserID int64
	Items  []CheckItem
}

// BatchReport sums up one scheduled sweep over all users.
type BatchReport struct {
	UsersChecked  int
	TracksChecked int
	Drops         []PriceDropEvent
	Failures      int
}

// Tracker is the price-check orchestrator.
type Tracker struct {
	store    Store
	resolver Resolver
	notifier Notifier
}

func New(st Store, res Resolver, not Notifier) *Tracker {
	return &Tracker{store: st, resolver: res, notifier: not}
}

// SetNotifier wires the delivery collaborator after construction.
// The bot both drives the tracker and receives its drop events, so
// one of the two links has to be attached late.
func (t *Tracker) SetNotifier(n Notifier) {
	t.notifier = n
}

// checkTrack resolves one track and records the observation. A track
// whose stored route no longer parses is reported unresolved and
// gets no observation row.
func (t *Tracker) checkTrack(ctx context.Context, tr *model.Track) (CheckItem, error) {
	item := CheckItem{TrackID: tr.ID, Route: tr.Route}

	origin, destination := tr.Origin, tr.Destination
	if origin == "" || destination == "" {
		var err error
		origin, destination, err = route.Parse(tr.Route)
		if err != nil {
			slog.Warn("stored route does not parse", "track", tr.ID, "route", tr.Route, "err", err)
			return item, nil
		}
	}

	result := t.resolver.Resolve(ctx, tr.Route, origin, destination)
	if err := t.store.RecordObservation(ctx, tr.ID, result.Price); err != nil {
		return item, err
	}

	item.Price = result.Price
	item.Source = result.Source
	item.Resolved = true
	return item, nil
}

// CheckUser checks every active track of one user.
func (t *Tracker) CheckUser(ctx context.Context, userID int64) (*CheckReport, error) {
	tracks, err := t.store.ListActiveTracks(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &CheckReport{UserID: userID}
	for i := range tracks {
		item, err := t.checkTrack(ctx, &tracks[i])
		if err != nil {
			return nil, err
		}
		report.Items = append(report.Items, item)
	}
	return report, nil
}

// CheckTrack checks a single track owned by the user.
func (t *Tracker) CheckTrack(ctx context.Context, userID, trackID int64) (*CheckReport, error) {
	tr, err := t.store.GetTrack(ctx, trackID, userID)
	if err != nil {
		return nil, err
	}

	item, err := t.checkTrack(ctx, tr)
	if err != nil {
		return nil, err
	}
	return &CheckReport{UserID: userID, Items: []CheckItem{item}}, nil
}

// CheckAll is the scheduled batch sweep. Every user and every track
// is processed independently: a failure on one is logged, counted
// and skipped, never aborting the rest. Price-drop decisions are
// made here and only here: a drop fires when the prior recorded
// minimum existed and the new observation is strictly lower.
func (t *Tracker) CheckAll(ctx context.Context) *BatchReport {
	report := &BatchReport{}

	userIDs, err := t.store.ActiveUserIDs(ctx)
	if err != nil {
		slog.Error("batch check: listing users failed", "err", err)
		report.Failures++
		return report
	}

	for _, userID := range userIDs {
		tracks, err := t.store.ListActiveTracks(ctx, userID)
		if err != nil {
			slog.Error("batch check: listing tracks failed", "user", userID, "err", err)
			report.Failures++
			continue
		}

		for i := range tracks {
			tr := &tracks[i]
			oldMin := tr.MinPrice

			item, err := t.checkTrack(ctx, tr)
			if err != nil {
				slog.Error("batch check: track failed", "user", userID, "track", tr.ID, "err", err)
				report.Failures++
				continue
			}
			report.TracksChecked++
			if !item.Resolved {
				continue
			}

			if oldMin != nil && item.Price < *oldMin {
				ev := PriceDropEvent{
					UserID:   userID,
					Route:    tr.Route,
					OldPrice: *oldMin,
					NewPrice: item.Price,
					Savings:  *oldMin - item.Price,
				}
				report.Drops = append(report.Drops, ev)
				if t.notifier != nil {
					if err := t.notifier.NotifyPriceDrop(userID, ev); err != nil {
						slog.Warn("price drop notification failed", "user", userID, "err", err)
					}
				}
			}
		}
		report.UsersChecked++
	}

	slog.Info("batch check done",
		"users", report.UsersChecked,
		"tracks", report.TracksChecked,
		"drops", len(report.Drops),
		"failures", report.Failures)
	return report
}
