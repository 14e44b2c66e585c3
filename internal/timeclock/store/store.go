// Package store owns the persisted kiosk aggregate.
//
// The whole models.Document is the unit of persistence: every mutation reads
// the current snapshot, derives a new one and overwrites the backend copy.
// Writes are serialized through a single mutex and guarded by a version
// compare-and-swap. Backends implementing ConditionalBackend (memory, redis,
// postgres, mysql) compare and write atomically, so a second process writing
// the same key is always detected. Other backends fall back to reading the
// persisted version just before the write, which leaves a small window for a
// concurrent writer in another process.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"timeclock/internal/timeclock/metrics"
	"timeclock/internal/timeclock/models"
	"timeclock/internal/timeclock/passcode"
	"timeclock/pkg/platform/sentinel"
)

// DefaultKey is the storage key the document is persisted under.
const DefaultKey = "timeclock.state.v1"

// maxUpdateAttempts bounds how often Update re-runs a mutation after a version conflict.
const maxUpdateAttempts = 3

// Backend persists the serialized document. Read returns sentinel.ErrNotFound
// when nothing has been stored yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// ConditionalBackend writes data only while the persisted document still
// carries version expected, returning sentinel.ErrConflict otherwise. A
// missing document, or one without a readable version, always matches.
type ConditionalBackend interface {
	Backend
	WriteIfVersion(ctx context.Context, data []byte, expected int64) error
}

// Clock returns the current time.
type Clock func() time.Time

// Listener receives a copy of every saved snapshot. Listeners run while the
// store lock is held and must not call back into the Store.
type Listener func(doc models.Document)

// Store is the Record Store. Construct one per process and share it.
type Store struct {
	backend         Backend
	identity        models.Identity
	defaultPasscode string
	hasher          func(string) (string, error)
	clock           Clock
	logger          *slog.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer

	mu        sync.Mutex
	current   *models.Document
	listeners []Listener
}

type Option func(*Store)

// WithIdentity sets the org/site/device identity of a fresh installation.
func WithIdentity(identity models.Identity) Option {
	return func(s *Store) {
		s.identity = identity
	}
}

// WithDefaultPasscode overrides the admin passcode of a fresh installation.
func WithDefaultPasscode(code string) Option {
	return func(s *Store) {
		s.defaultPasscode = code
	}
}

// WithPasscodeHasher replaces the passcode digest function.
func WithPasscodeHasher(hasher func(string) (string, error)) Option {
	return func(s *Store) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New constructs a Store over backend. Nothing is read until Load.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		identity: models.Identity{
			OrgID:    models.DefaultOrgID,
			SiteID:   models.DefaultSiteID,
			DeviceID: models.DefaultDeviceID,
		},
		defaultPasscode: models.DefaultAdminPasscode,
		hasher:          passcode.Hash,
		clock:           time.Now,
		logger:          slog.Default(),
		tracer:          otel.Tracer("timeclock/store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a listener for saved snapshots.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load returns the persisted document. A missing document is initialized and
// persisted; an unparsable one is discarded and re-initialized. Expired
// evidence images are purged before returning.
func (s *Store) Load(ctx context.Context) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "store.Load")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return doc.Clone(), nil
}

// Snapshot returns a copy of the current document, loading it on first use.
func (s *Store) Snapshot(ctx context.Context) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		if _, err := s.loadLocked(ctx); err != nil {
			return nil, err
		}
	}
	return s.current.Clone(), nil
}

// Save overwrites the persisted document with doc. doc.Version must match the
// persisted version, otherwise sentinel.ErrConflict is returned and nothing is
// written. On success doc.Version is advanced to the stored version.
func (s *Store) Save(ctx context.Context, doc *models.Document) error {
	ctx, span := s.tracer.Start(ctx, "store.Save")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(ctx, doc); err != nil {
		recordError(span, err)
		return err
	}
	return nil
}

// Update applies fn to a copy of the current document and saves the result.
// If fn returns an error nothing is persisted and the error is returned
// unchanged. A version conflict reloads the document and re-runs fn.
func (s *Store) Update(ctx context.Context, fn func(doc *models.Document) error) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "store.Update")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		if _, err := s.loadLocked(ctx); err != nil {
			recordError(span, err)
			return nil, err
		}
	}

	var err error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		work := s.current.Clone()
		if err = fn(work); err != nil {
			return nil, err
		}
		err = s.saveLocked(ctx, work)
		if err == nil {
			return work.Clone(), nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
		s.logger.WarnContext(ctx, "document changed underneath, reloading",
			"attempt", attempt,
		)
		if _, rerr := s.refreshLocked(ctx); rerr != nil {
			err = rerr
			break
		}
	}
	recordError(span, err)
	return nil, err
}

// PurgeRetention clears every evidence image whose event is at or before the
// retention cutoff and persists the document only if something changed. It
// returns how many images were cleared.
func (s *Store) PurgeRetention(ctx context.Context, doc *models.Document) (int, error) {
	ctx, span := s.tracer.Start(ctx, "store.PurgeRetention")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.purgeLocked(ctx, doc)
	span.SetAttributes(attribute.Int("timeclock.images_purged", n))
	if err != nil {
		recordError(span, err)
	}
	return n, err
}

func (s *Store) loadLocked(ctx context.Context) (*models.Document, error) {
	doc, err := s.read(ctx)
	switch {
	case err == nil:
		s.current = doc
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrCorrupt):
		if errors.Is(err, sentinel.ErrCorrupt) {
			s.logger.WarnContext(ctx, "discarding unreadable document", "error", err)
		}
		fresh, ierr := s.initialize()
		if ierr != nil {
			return nil, ierr
		}
		if werr := s.writeLocked(ctx, fresh, false); werr != nil {
			return nil, werr
		}
		s.logger.InfoContext(ctx, "initialized kiosk document",
			"org_id", fresh.Device.OrgID,
			"site_id", fresh.Device.SiteID,
			"device_id", fresh.Device.DeviceID,
		)
	default:
		return nil, err
	}

	working := s.current.Clone()
	if _, err := s.purgeLocked(ctx, working); err != nil {
		return nil, err
	}
	return s.current, nil
}

// refreshLocked replaces the cached snapshot with the persisted one without
// initializing or purging.
func (s *Store) refreshLocked(ctx context.Context) (*models.Document, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	s.current = doc
	return doc, nil
}

func (s *Store) initialize() (*models.Document, error) {
	digest, err := s.hasher(s.defaultPasscode)
	if err != nil {
		return nil, fmt.Errorf("hash default passcode: %w", err)
	}
	return models.NewDocument(s.identity, digest), nil
}

// purgeLocked works on a copy so doc only changes once the purge is persisted.
func (s *Store) purgeLocked(ctx context.Context, doc *models.Document) (int, error) {
	work := doc.Clone()
	cutoff := work.RetentionCutoff(s.clock())
	purged := 0
	for i := range work.Events {
		ev := &work.Events[i]
		if ev.HasImage() && !ev.Timestamp.After(cutoff) {
			ev.Image = ""
			purged++
		}
	}
	if purged == 0 {
		return 0, nil
	}
	if err := s.saveLocked(ctx, work); err != nil {
		return 0, err
	}
	*doc = *work
	s.metrics.AddImagesPurged(purged)
	s.logger.InfoContext(ctx, "purged expired evidence images",
		"count", purged,
		"retention_weeks", doc.Device.RetentionWeeks,
	)
	return purged, nil
}

func (s *Store) saveLocked(ctx context.Context, doc *models.Document) error {
	err := s.writeLocked(ctx, doc, true)
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.IncrementStoreConflict()
	}
	return err
}

// persist writes data. When checked, the write only happens while the
// persisted version equals expected.
func (s *Store) persist(ctx context.Context, data []byte, expected int64, checked bool) error {
	if !checked {
		return s.backend.Write(ctx, data)
	}
	if cb, ok := s.backend.(ConditionalBackend); ok {
		return cb.WriteIfVersion(ctx, data, expected)
	}
	if err := s.checkVersion(ctx, expected); err != nil {
		return err
	}
	return s.backend.Write(ctx, data)
}

// checkVersion compares expected against the version currently persisted.
// A missing or unreadable document never conflicts.
func (s *Store) checkVersion(ctx context.Context, expected int64) error {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read document version: %w", err)
	}
	return versionMatches(data, expected)
}

func (s *Store) writeLocked(ctx context.Context, doc *models.Document, checked bool) error {
	next := doc.Clone()
	next.Normalize()
	next.Version = doc.Version + 1

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	start := time.Now()
	if err := s.persist(ctx, data, doc.Version, checked); err != nil {
		return err
	}
	s.metrics.ObserveStoreWrite(start)

	doc.Version = next.Version
	s.current = next
	for _, l := range s.listeners {
		l(*next.Clone())
	}
	return nil
}

func (s *Store) read(ctx context.Context) (*models.Document, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrCorrupt, err)
	}
	doc.Normalize()
	return &doc, nil
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
