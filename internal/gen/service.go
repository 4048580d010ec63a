package gen

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sariahouse/racebot/internal/goal"
	"github.com/sariahouse/racebot/internal/store"
)

const updateBuffer = 128

// Service picks the right generator backend for each seed and handles the
// preroll schedule and the cache of prerolled seeds.
type Service struct {
	log   *logrus.Logger
	store store.Store
	web   *WebClient
	local *LocalRoller
	blitz *BlitzClient

	cacheSignal chan struct{}
}

func NewService(log *logrus.Logger, st store.Store, web *WebClient, local *LocalRoller, blitz *BlitzClient) *Service {
	return &Service{
		log:         log,
		store:       st,
		web:         web,
		local:       local,
		blitz:       blitz,
		cacheSignal: make(chan struct{}, 1),
	}
}

// RollSeed rolls a seed in the background and streams progress updates.
// The channel is closed after the final Done or Error update.
//
// Web generator seed IDs are sequential, making a seed easy to find if you
// know when it was rolled. The preroll mode delays the start of rolling to
// make that harder while still leaving enough time for hard-to-generate
// settings.
func (s *Service) RollSeed(ctx context.Context, preroll goal.PrerollMode, allowWeb bool, delayUntil time.Time, version goal.RandoVersion, policy goal.UnlockPolicy, settings map[string]any) <-chan SeedRollUpdate {
	updates := make(chan SeedRollUpdate, updateBuffer)
	go func() {
		defer close(updates)
		webVersion := (*goal.Version)(nil)
		if allowWeb {
			webVersion = s.web.CanRollOnWeb(ctx, version, worldCount(settings), policy)
		}
		if webVersion != nil {
			if !sleepForPreroll(ctx, preroll, delayUntil) {
				return
			}
			seed, err := s.web.RollSeedWeb(ctx, updates, delayUntil, *webVersion, policy, settings)
			if err != nil {
				send(ctx, updates, SeedRollUpdate{Kind: UpdateError, Err: err})
				return
			}
			send(ctx, updates, SeedRollUpdate{Kind: UpdateDone, Seed: seed})
			return
		}
		seed, err := s.local.RollSeed(ctx, updates, delayUntil, policy, settings)
		if err != nil {
			send(ctx, updates, SeedRollUpdate{Kind: UpdateError, Err: err})
			return
		}
		send(ctx, updates, SeedRollUpdate{Kind: UpdateDone, Seed: seed})
	}()
	return updates
}

// RollBlitzSeed rolls a seed on the alternate site, delayed to a random
// point between now and the deadline.
func (s *Service) RollBlitzSeed(ctx context.Context, delayUntil time.Time, policy goal.UnlockPolicy, roomURL, version string) <-chan SeedRollUpdate {
	updates := make(chan SeedRollUpdate, updateBuffer)
	go func() {
		defer close(updates)
		if !sleepForPreroll(ctx, goal.PrerollMedium, delayUntil) {
			return
		}
		seed, err := s.blitz.RollSeed(ctx, updates, policy, roomURL, version)
		if err != nil {
			send(ctx, updates, SeedRollUpdate{Kind: UpdateError, Err: err})
			return
		}
		send(ctx, updates, SeedRollUpdate{Kind: UpdateDone, Seed: seed})
	}()
	return updates
}

// sleepForPreroll waits out the preroll delay. It reports false if the
// context ended first.
func sleepForPreroll(ctx context.Context, preroll goal.PrerollMode, delayUntil time.Time) bool {
	var d time.Duration
	switch preroll {
	case goal.PrerollNone:
		d = time.Until(delayUntil)
	case goal.PrerollShort:
		// A random point within the 5 minutes before the deadline.
		until := time.Until(delayUntil)
		if until > 0 {
			earliest := until - 5*time.Minute
			if earliest < 0 {
				earliest = 0
			}
			d = earliest + randDuration(until-earliest)
		}
	case goal.PrerollMedium:
		// A random point between now and the deadline.
		until := time.Until(delayUntil)
		if until > 0 {
			d = randDuration(until)
		}
	case goal.PrerollLong:
		// Roll immediately.
	}
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func randDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// UnlockSpoilerLog makes a web-generated seed's spoiler log public.
func (s *Service) UnlockSpoilerLog(ctx context.Context, webID int64) error {
	return s.web.UnlockSpoilerLog(ctx, webID)
}

// TakePrerolledSeed consumes a cached seed for the goal, nudging the cache
// loop to roll a replacement.
func (s *Service) TakePrerolledSeed(ctx context.Context, g goal.Goal) (*store.PrerolledSeed, error) {
	seed, err := s.store.TakePrerolledSeed(ctx, g.Name())
	if err != nil {
		return nil, err
	}
	if seed != nil {
		s.InvalidateCache()
	}
	return seed, nil
}

// InvalidateCache wakes the cache loop for a recheck.
func (s *Service) InvalidateCache() {
	select {
	case s.cacheSignal <- struct{}{}:
	default:
	}
}

// MaintainSeedCache keeps one prerolled seed per long-preroll goal with an
// active event, rechecking daily and whenever a cached seed is consumed.
func (s *Service) MaintainSeedCache(ctx context.Context) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if err := s.fillSeedCache(ctx); err != nil {
			s.log.WithError(err).Error("seed cache fill failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.cacheSignal:
		}
	}
}

func (s *Service) fillSeedCache(ctx context.Context) error {
	events, err := s.store.ListActiveEvents(ctx, time.Now())
	if err != nil {
		return err
	}
	for _, ev := range events {
		g, ok := goal.ForEvent(ev.Series, ev.Name)
		if !ok || !g.PrerollCacheable() {
			continue
		}
		have, err := s.store.HasPrerolledSeed(ctx, g.Name())
		if err != nil {
			return err
		}
		if have {
			continue
		}
		if err := s.rollCachedSeed(ctx, g); err != nil {
			s.log.WithError(err).WithField("goal", g.Name()).Error("prerolling cached seed failed")
		}
	}
	return nil
}

func (s *Service) rollCachedSeed(ctx context.Context, g goal.Goal) error {
	version, ok := g.RandoVersion()
	if !ok {
		return nil
	}
	s.log.WithField("goal", g.Name()).Info("prerolling seed for cache")
	updates := s.RollSeed(ctx, goal.PrerollLong, true, time.Time{}, version, goal.UnlockAfter, g.SingleSettings())
	for u := range updates {
		switch u.Kind {
		case UpdateDone:
			return s.store.PutPrerolledSeed(ctx, &store.PrerolledSeed{
				Goal:      g.Name(),
				FileStem:  u.Seed.FileStem,
				Spoiler:   u.Seed.SpoilerPath,
				HashIcons: u.Seed.HashIcons,
			})
		case UpdateError:
			return u.Err
		}
	}
	return ctx.Err()
}
