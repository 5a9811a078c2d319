package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/house-market/internal/geocode"
	"github.com/evcraddock/house-market/internal/imagestore"
)

// Stage is a step of a listing write.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageValidating  Stage = "validating"
	StageGeocoding   Stage = "geocoding"
	StageUploading   Stage = "uploading"
	StageReconciling Stage = "reconciling"
	StagePersisting  Stage = "persisting"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Resolver resolves an address to a geolocation.
type Resolver interface {
	Resolve(ctx context.Context, address string, manual geocode.Point) (geocode.Result, error)
}

// ImageStore uploads and deletes listing images.
type ImageStore interface {
	Upload(ctx context.Context, blob imagestore.Blob, ownerID string, progress imagestore.Progress) (string, error)
	Delete(ctx context.Context, url string) error
}

// Store persists listing records.
type Store interface {
	Insert(rec *Record) error
	Update(rec *Record) error
	GetByID(id string) (*Record, error)
	Delete(id string) error
}

// Result is the outcome of a successful write.
type Result struct {
	Record *Record
	// Warnings holds non-fatal image delete failures.
	Warnings []error
	// Redirect is the path of the listing's detail view.
	Redirect string
}

// Service runs listing create, update, and delete workflows.
type Service struct {
	store    Store
	resolver Resolver
	images   ImageStore
	logger   *slog.Logger

	observer func(id string, stage Stage)
	progress func(filename string, written, total int64)
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for stage transitions.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithObserver registers a callback for every stage transition.
func WithObserver(fn func(id string, stage Stage)) Option {
	return func(s *Service) { s.observer = fn }
}

// WithProgress registers a callback for image upload progress.
func WithProgress(fn func(filename string, written, total int64)) Option {
	return func(s *Service) { s.progress = fn }
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a listing service.
func NewService(store Store, resolver Resolver, images ImageStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: resolver,
		images:   images,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run tracks the stage of one write for logging and observers.
type run struct {
	s     *Service
	op    string
	id    string
	stage Stage
}

func (s *Service) start(op, id string) *run {
	r := &run{s: s, op: op, id: id, stage: StageIdle}
	r.enter(StageIdle)
	return r
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.s.logger.Debug("listing stage", "op", r.op, "listing_id", r.id, "stage", stage)
	if r.s.observer != nil {
		r.s.observer(r.id, stage)
	}
}

func (r *run) fail(err error) error {
	failedAt := r.stage
	r.enter(StageFailed)
	r.s.logger.Warn("listing write failed", "op", r.op, "listing_id", r.id, "stage", failedAt, "error", err)
	return err
}

// Update applies draft to the listing id on behalf of requester. removed
// lists image URLs of the listing to drop.
func (s *Service) Update(ctx context.Context, requester, id string, draft Draft, removed []string) (*Result, error) {
	r := s.start("update", id)

	existing, err := s.store.GetByID(id)
	if err != nil {
		return nil, r.fail(err)
	}
	if requester == "" || existing.UserRef != requester {
		return nil, r.fail(ErrForbidden)
	}
	draft.UserRef = existing.UserRef

	r.enter(StageValidating)
	if err := draft.Validate(); err != nil {
		return nil, r.fail(err)
	}
	removed, err = checkRemovals(existing.ImageURLs, removed)
	if err != nil {
		return nil, r.fail(err)
	}
	if err := CheckImageCapacity(existing.ImageURLs, removed, len(draft.Images)); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageGeocoding)
	resolved, err := s.resolve(ctx, draft)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageUploading)
	added, err := s.uploadAll(ctx, draft.Images, draft.UserRef)
	if err != nil {
		return nil, r.fail(err)
	}
	warnings := s.deleteAll(ctx, removed)

	r.enter(StageReconciling)
	merged := MergeImageURLs(existing.ImageURLs, removed, added)
	rec := BuildRecord(draft, id, resolved, merged, s.now())

	r.enter(StagePersisting)
	if err := s.store.Update(&rec); err != nil {
		return nil, r.fail(fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	r.enter(StageDone)
	return &Result{Record: &rec, Warnings: warnings, Redirect: DetailPath(&rec)}, nil
}

// Create stores a new listing owned by requester. At least one image is
// required.
func (s *Service) Create(ctx context.Context, requester string, draft Draft) (*Result, error) {
	id := s.newID()
	r := s.start("create", id)

	if requester == "" {
		return nil, r.fail(ErrForbidden)
	}
	draft.UserRef = requester

	r.enter(StageValidating)
	if err := draft.Validate(); err != nil {
		return nil, r.fail(err)
	}
	if len(draft.Images) == 0 {
		return nil, r.fail(fmt.Errorf("%w: at least one image is required", ErrValidation))
	}
	if err := CheckImageCapacity(nil, nil, len(draft.Images)); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageGeocoding)
	resolved, err := s.resolve(ctx, draft)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageUploading)
	added, err := s.uploadAll(ctx, draft.Images, requester)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageReconciling)
	rec := BuildRecord(draft, id, resolved, added, s.now())

	r.enter(StagePersisting)
	if err := s.store.Insert(&rec); err != nil {
		return nil, r.fail(fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	r.enter(StageDone)
	return &Result{Record: &rec, Redirect: DetailPath(&rec)}, nil
}

// Delete removes the listing id and then its images. Image delete failures
// are returned as warnings.
func (s *Service) Delete(ctx context.Context, requester, id string) ([]error, error) {
	existing, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if requester == "" || existing.UserRef != requester {
		return nil, ErrForbidden
	}

	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info("listing deleted", "listing_id", id, "images", len(existing.ImageURLs))
	return s.deleteAll(ctx, existing.ImageURLs), nil
}

// DetailPath returns the path of a listing's detail view.
func DetailPath(rec *Record) string {
	return fmt.Sprintf("/category/%s/%s", rec.Type, rec.ID)
}

func (s *Service) resolve(ctx context.Context, d Draft) (geocode.Result, error) {
	manual := geocode.Point{Lat: d.Latitude, Lng: d.Longitude}
	res, err := s.resolver.Resolve(ctx, d.Address, manual)
	if err != nil {
		if errors.Is(err, ErrInvalidAddress) {
			return geocode.Result{}, err
		}
		return geocode.Result{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return res, nil
}

// uploadAll uploads every blob concurrently. The returned URLs keep the
// order of blobs. If any upload fails the others are canceled and the whole
// set is reported as one failure.
func (s *Service) uploadAll(ctx context.Context, blobs []imagestore.Blob, owner string) ([]string, error) {
	urls := make([]string, len(blobs))
	g, gctx := errgroup.WithContext(ctx)

	for i, blob := range blobs {
		g.Go(func() error {
			var progress imagestore.Progress
			if s.progress != nil {
				progress = func(written, total int64) {
					s.progress(blob.Filename, written, total)
				}
			}

			u, err := s.images.Upload(gctx, blob, owner, progress)
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUploadFailed, err)
	}
	return urls, nil
}

// deleteAll deletes every URL concurrently and returns one warning per
// failure.
func (s *Service) deleteAll(ctx context.Context, urls []string) []error {
	errs := make([]error, len(urls))
	var g errgroup.Group

	for i, u := range urls {
		g.Go(func() error {
			if err := s.images.Delete(ctx, u); err != nil {
				errs[i] = fmt.Errorf("%w: %s: %v", ErrImageDeleteFailed, u, err)
				s.logger.Warn("image delete failed", "url", u, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var warnings []error
	for _, err := range errs {
		if err != nil {
			warnings = append(warnings, err)
		}
	}
	return warnings
}
