// Package autodj plans playthroughs of procedurally assembled songs and feeds
// them to an audio sink forever.
package autodj

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/loopdj/internal/audio"
	"github.com/satindergrewal/loopdj/internal/catalog"
	"github.com/satindergrewal/loopdj/internal/playback"
)

// DefaultFadeDuration is the length of the fade-out tail for songs without an ending.
const DefaultFadeDuration = 8 * time.Second

var (
	// ErrNoSongs is returned when the catalog is empty.
	ErrNoSongs = errors.New("no songs found")

	// ErrUnknownSong is returned when the override song is not in the catalog.
	ErrUnknownSong = errors.New("song not found")
)

// SchedulerConfig holds auto-DJ parameters.
type SchedulerConfig struct {
	MaxRepeats   int    // exclusive upper bound for loop repeats, greater than playback.MinRepeats
	Override     string // always play this song when set
	DebugWait    bool   // wait for the sink after every segment
	FadeDuration time.Duration
}

// SchedulerStatus is the current state of the auto-DJ.
type SchedulerStatus struct {
	Song        string    `json:"song"`
	Segment     string    `json:"segment"`
	Playthrough string    `json:"playthrough"`
	Plan        []string  `json:"plan"`
	Songs       int       `json:"songs"`
	StartedAt   time.Time `json:"started_at"`
}

// Loader decodes one segment of a song into memory.
type Loader func(song *catalog.Song, seg *catalog.Segment) (*beep.Buffer, error)

// ChangeReporter reports whether the songs directory changed since the last call.
type ChangeReporter interface {
	Changed() bool
}

// Rescanner rebuilds the catalog from disk.
type Rescanner func() (catalog.Catalog, error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithRand sets the random source used for song choice, plans and repeats.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// WithLoader replaces audio.LoadSegment.
func WithLoader(load Loader) Option {
	return func(s *Scheduler) { s.load = load }
}

// WithNotifier registers n to receive playback events.
func WithNotifier(n playback.Notifier) Option {
	return func(s *Scheduler) { s.notifiers = append(s.notifiers, n) }
}

// WithRescan rebuilds the catalog between playthroughs whenever changes reports a change.
func WithRescan(changes ChangeReporter, rescan Rescanner) Option {
	return func(s *Scheduler) {
		s.changes = changes
		s.rescan = rescan
	}
}

// Scheduler picks songs, plans playthroughs and queues them on a sink.
type Scheduler struct {
	sink   audio.Sink
	cfg    SchedulerConfig
	load   Loader
	rng    *rand.Rand
	logger zerolog.Logger

	notifiers []playback.Notifier
	changes   ChangeReporter
	rescan    Rescanner

	mu      sync.RWMutex
	catalog catalog.Catalog
	status  SchedulerStatus
}

// NewScheduler creates an auto-DJ scheduler.
func NewScheduler(cat catalog.Catalog, sink audio.Sink, cfg SchedulerConfig, opts ...Option) *Scheduler {
	if cfg.FadeDuration <= 0 {
		cfg.FadeDuration = DefaultFadeDuration
	}
	s := &Scheduler{
		sink:    sink,
		cfg:     cfg,
		load:    audio.LoadSegment,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:  zerolog.Nop(),
		catalog: cat,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status.Songs = len(cat)
	return s
}

// Status returns the current DJ state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Plan = append([]string(nil), s.status.Plan...)
	return st
}

// Run plays songs until ctx is cancelled. Any other error stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.MaxRepeats <= playback.MinRepeats {
		return fmt.Errorf("max repeats %d must be greater than %d", s.cfg.MaxRepeats, playback.MinRepeats)
	}
	s.logger.Info().Int("songs", len(s.catalog)).Msg("Auto-DJ started")

	for {
		if err := s.PlayOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// PlayOnce queues one full playthrough and waits for the sink to finish it.
func (s *Scheduler) PlayOnce(ctx context.Context) error {
	if err := s.maybeRescan(); err != nil {
		return err
	}
	song, err := s.chooseSong()
	if err != nil {
		return err
	}

	plan, err := MakePlan(song, s.rng)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	started := time.Now()
	s.mu.Lock()
	s.status.Song = song.ID
	s.status.Segment = ""
	s.status.Playthrough = id
	s.status.Plan = plan.IDs()
	s.status.StartedAt = started
	s.mu.Unlock()

	s.logger.Info().Str("song", song.ID).Str("playthrough", id).Msg("Now playing")
	s.logger.Info().Strs("plan", plan.IDs()).Msg("Plan")
	s.notify(ctx, playback.Event{Type: playback.EventPlaythroughStarted, Playthrough: id, Song: song.ID, Plan: plan.IDs(), Time: started})

	for _, seg := range plan {
		if err := s.queueSegment(ctx, id, song, seg); err != nil {
			return err
		}
	}
	if !song.HasEnd {
		if err := s.queueFadeOut(song, plan.Last()); err != nil {
			return err
		}
	}

	if err := s.sink.Wait(ctx); err != nil {
		return fmt.Errorf("play %s: %w", song.ID, err)
	}
	s.notify(ctx, playback.Event{Type: playback.EventPlaythroughFinished, Playthrough: id, Song: song.ID, Time: time.Now()})
	return nil
}

func (s *Scheduler) queueSegment(ctx context.Context, playthrough string, song *catalog.Song, seg *catalog.Segment) error {
	buf, err := s.load(song, seg)
	if err != nil {
		return err
	}
	if s.cfg.DebugWait {
		s.logger.Info().Str("segment", seg.ID).Msg("Playing segment")
	}

	src := audio.Source{Label: song.ID + "/" + seg.ID, Format: buf.Format()}
	repeats := 1
	if seg.IsLoop() {
		repeats = playback.MinRepeats + s.rng.IntN(s.cfg.MaxRepeats-playback.MinRepeats)
		s.logger.Info().Str("segment", seg.ID).Int("repeats", repeats).Msg("Repeating segment")
		src.Streamer = audio.Repeat(buf, repeats)
	} else {
		src.Streamer = buf.Streamer(0, buf.Len())
	}
	s.sink.Append(src)

	s.mu.Lock()
	s.status.Segment = seg.ID
	s.mu.Unlock()
	s.notify(ctx, playback.Event{Type: playback.EventSegmentQueued, Playthrough: playthrough, Song: song.ID, Segment: seg.ID, Repeats: repeats, Time: time.Now()})

	if s.cfg.DebugWait {
		if err := s.sink.Wait(ctx); err != nil {
			return fmt.Errorf("play %s/%s: %w", song.ID, seg.ID, err)
		}
	}
	return nil
}

// queueFadeOut replays the head of last, fading to silence.
func (s *Scheduler) queueFadeOut(song *catalog.Song, last *catalog.Segment) error {
	buf, err := s.load(song, last)
	if err != nil {
		return err
	}
	frames := min(buf.Len(), buf.Format().SampleRate.N(s.cfg.FadeDuration))
	s.sink.Append(audio.Source{
		Label:    song.ID + "/" + last.ID + " (fade)",
		Streamer: audio.FadeOut(buf.Streamer(0, buf.Len()), frames),
		Format:   buf.Format(),
	})
	return nil
}

func (s *Scheduler) chooseSong() (*catalog.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg.Override != "" {
		song, ok := s.catalog[s.cfg.Override]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSong, s.cfg.Override)
		}
		return song, nil
	}
	ids := s.catalog.IDs()
	if len(ids) == 0 {
		return nil, ErrNoSongs
	}
	return s.catalog[ids[s.rng.IntN(len(ids))]], nil
}

func (s *Scheduler) maybeRescan() error {
	if s.changes == nil || s.rescan == nil || !s.changes.Changed() {
		return nil
	}
	cat, err := s.rescan()
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	s.mu.Lock()
	s.catalog = cat
	s.status.Songs = len(cat)
	s.mu.Unlock()
	s.logger.Info().Int("songs", len(cat)).Msg("Rescanned songs directory")
	return nil
}

func (s *Scheduler) notify(ctx context.Context, ev playback.Event) {
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Str("event", ev.Type).Msg("Notify failed")
		}
	}
}
