// Package service implements the consent lifecycle engine: submission,
// projection reads, and single-purpose status transitions over the active
// artifact of one (principal, fiduciary) pair.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"concur/internal/consent/cache"
	"concur/internal/consent/hash"
	"concur/internal/consent/metrics"
	"concur/internal/consent/models"
	"concur/internal/consent/scope"
	"concur/internal/consent/store"
	"concur/internal/directory"
	dErrors "concur/pkg/domain-errors"
	"concur/pkg/platform/audit"
	"concur/pkg/platform/sentinel"
)

const (
	defaultOpTimeout = 5 * time.Second
	defaultCacheTTL  = time.Hour

	unknownPurposeDescription = "unknown purpose"
)

// Clock supplies the current time. Injected for deterministic tests.
type Clock func() time.Time

// Engine orchestrates the consent lifecycle. All collaborators are injected;
// the engine holds no global state.
type Engine struct {
	dir     directory.Directory
	store   store.Store
	cache   cache.Cache
	builder *scope.Builder
	sink    audit.Sink
	met     *metrics.Metrics
	logger  *slog.Logger
	clock   Clock
	ttl     time.Duration
	timeout time.Duration
	tracer  trace.Tracer
	locks   keyLock
	reads   singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditSink sets the audit sink. Without one, transitions are not audited.
func WithAuditSink(sink audit.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMetrics sets the metrics collaborator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.met = m }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithCacheTTL sets the projection cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithOpTimeout bounds each operation when the caller set no deadline.
func WithOpTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(dir directory.Directory, st store.Store, ch cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		dir:     dir,
		store:   st,
		cache:   ch,
		builder: scope.NewBuilder(dir),
		logger:  slog.Default(),
		clock:   time.Now,
		ttl:     defaultCacheTTL,
		timeout: defaultOpTimeout,
		tracer:  otel.Tracer("concur/consent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Submit validates the request against the directory and persists the
// artifact. An existing active artifact for the pair is corrected in place;
// a fresh agreement id is assigned on every accepted submission.
func (e *Engine) Submit(ctx context.Context, req *models.SubmitRequest) (*models.ConsentArtifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	ctx, span := e.tracer.Start(ctx, "consent.submit", trace.WithAttributes(
		attribute.String("consent.principal_id", req.PrincipalID),
		attribute.String("consent.fiduciary_id", req.FiduciaryID),
	))
	defer span.End()
	if e.met != nil {
		defer e.met.ObserveOp("submit", time.Now())
	}

	lock := e.locks.lockFor(req.PrincipalID, req.FiduciaryID)
	lock.Lock()
	defer lock.Unlock()

	now := e.clock().UTC()
	cp, entries, err := e.builder.Build(ctx, req.CollectionPointID, req.ApplicationID, req.Scope, now, scope.ModeStrict)
	if err != nil {
		return nil, err
	}

	artifact := &models.ConsentArtifact{
		PrincipalID:         req.PrincipalID,
		FiduciaryID:         req.FiduciaryID,
		ApplicationID:       req.ApplicationID,
		CollectionPointID:   cp.ID,
		CollectionPointName: cp.Name,
		Language:            req.Language,
		LinkedAgreement:     req.LinkedAgreement,
		CreatedAt:           now,
		Scope:               entries,
		Active:              true,
	}
	digest, err := hash.Digest(artifact)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "compute agreement hash")
	}
	artifact.AgreementHash = digest
	artifact.AgreementID = hash.NewAgreementID()

	if err := e.store.Upsert(ctx, artifact); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "persist consent artifact")
	}

	e.repopulateCache(ctx, artifact, cp)
	e.emit(ctx, audit.ActionSubmitted, artifact, "")
	if e.met != nil {
		e.met.Submits.Inc()
	}
	return artifact, nil
}

// Read returns the denormalized projection for the pair, serving from the
// cache when possible. Directory drift degrades the rendering, never the
// read itself. Concurrent misses on one pair collapse to a single rebuild.
func (e *Engine) Read(ctx context.Context, principalID, fiduciaryID string) (models.Projection, error) {
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	ctx, span := e.tracer.Start(ctx, "consent.read", trace.WithAttributes(
		attribute.String("consent.principal_id", principalID),
		attribute.String("consent.fiduciary_id", fiduciaryID),
	))
	defer span.End()
	if e.met != nil {
		defer e.met.ObserveOp("read", time.Now())
	}

	projection, hit, err := e.cache.Get(ctx, principalID, fiduciaryID)
	if err != nil {
		e.cacheDegraded(ctx, "get", err)
	} else if hit {
		if e.met != nil {
			e.met.CacheHits.Inc()
		}
		return projection, nil
	}
	if e.met != nil {
		e.met.CacheMisses.Inc()
	}

	result, err, _ := e.reads.Do(principalID+"|"+fiduciaryID, func() (any, error) {
		lock := e.locks.lockFor(principalID, fiduciaryID)
		lock.Lock()
		defer lock.Unlock()

		artifact, err := e.store.GetActive(ctx, principalID, fiduciaryID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "no active consent for principal and fiduciary")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "load active artifact")
		}

		cp, err := e.dir.CollectionPoint(ctx, artifact.CollectionPointID, artifact.ApplicationID)
		if err != nil {
			// Reads survive directory drift; titles degrade to element ids.
			cp = nil
		}

		built := e.project(artifact, cp)
		if err := e.cache.Set(ctx, principalID, fiduciaryID, built, e.ttl); err != nil {
			e.cacheDegraded(ctx, "set", err)
		}
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(models.Projection), nil
}

// SetConsentStatus transitions one purpose of the active artifact. Revoking
// updates the artifact in place; re-granting forks a new version whose
// expiry window extends cumulatively from the prior one.
func (e *Engine) SetConsentStatus(ctx context.Context, principalID, fiduciaryID, purposeID string, granted bool) error {
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	ctx, span := e.tracer.Start(ctx, "consent.set_status", trace.WithAttributes(
		attribute.String("consent.principal_id", principalID),
		attribute.String("consent.purpose_id", purposeID),
		attribute.Bool("consent.granted", granted),
	))
	defer span.End()
	if e.met != nil {
		defer e.met.ObserveOp("set_status", time.Now())
	}

	lock := e.locks.lockFor(principalID, fiduciaryID)
	lock.Lock()
	defer lock.Unlock()

	artifact, err := e.store.GetActive(ctx, principalID, fiduciaryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no active consent for principal and fiduciary")
		}
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "load active artifact")
	}

	elementID, rec, ok := artifact.Record(purposeID)
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "purpose %s is not part of the consent scope", purposeID)
	}
	if rec.Granted == granted {
		return dErrors.Newf(dErrors.CodeAlreadyInState, "consent for purpose %s is already %s", purposeID, statusWord(granted))
	}

	if !granted {
		return e.revoke(ctx, artifact, purposeID)
	}
	return e.regrant(ctx, artifact, elementID, purposeID)
}

// revoke stamps the record revoked and rewrites the active artifact in
// place. The agreement id and version count do not change.
func (e *Engine) revoke(ctx context.Context, artifact *models.ConsentArtifact, purposeID string) error {
	now := e.clock().UTC()
	next := artifact.Clone()
	_, rec, _ := next.Record(purposeID)
	rec.Granted = false
	rec.RevokedAt = &now

	if err := e.store.Upsert(ctx, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "persist revocation")
	}

	e.invalidateCache(ctx, next.PrincipalID, next.FiduciaryID)
	e.emit(ctx, audit.ActionRevoked, next, purposeID)
	if e.met != nil {
		e.met.Revocations.Inc()
	}
	return nil
}

// regrant forks a successor artifact: the purpose becomes granted again,
// its expiry extends from the prior expiry rather than resetting, and the
// predecessor is demoted in the same store transition.
func (e *Engine) regrant(ctx context.Context, artifact *models.ConsentArtifact, elementID, purposeID string) error {
	now := e.clock().UTC()
	next := artifact.Clone()
	_, rec, _ := next.Record(purposeID)

	expiryDays, retentionDays, resolved := e.resolvePeriods(ctx, artifact, elementID, purposeID)

	prevExpiry := rec.ExpiresAt
	prevConsented := rec.ConsentedAt
	switch {
	case resolved && !prevExpiry.IsZero():
		rec.ExpiresAt = prevExpiry.AddDate(0, 0, expiryDays)
	case resolved:
		rec.ExpiresAt = windowEnd(now, expiryDays)
	case !prevExpiry.IsZero() && prevExpiry.After(prevConsented):
		// Directory no longer declares the purpose; reuse the prior window.
		rec.ExpiresAt = prevExpiry.Add(prevExpiry.Sub(prevConsented))
	}
	if resolved {
		rec.RetainUntil = windowEnd(now, retentionDays)
	}
	rec.Granted = true
	rec.RevokedAt = nil
	rec.ConsentedAt = now

	next.LinkedAgreement = artifact.AgreementID
	next.CreatedAt = now
	next.AgreementID = ""
	next.AgreementHash = ""
	digest, err := hash.Digest(next)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "compute agreement hash")
	}
	next.AgreementHash = digest
	next.AgreementID = hash.NewAgreementID()
	next.Active = true

	if err := e.store.Fork(ctx, artifact.AgreementID, next); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.Wrap(err, dErrors.CodeConflict, "artifact superseded by a concurrent transition")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "active artifact disappeared before fork")
		default:
			return dErrors.Wrap(err, dErrors.CodeStoreFailure, "fork consent artifact")
		}
	}

	e.invalidateCache(ctx, next.PrincipalID, next.FiduciaryID)
	e.emit(ctx, audit.ActionRegranted, next, purposeID)
	if e.met != nil {
		e.met.Regrants.Inc()
	}
	return nil
}

// resolvePeriods looks the purpose's current expiry and retention periods up
// in the directory. resolved is false when the collection point, element, or
// purpose no longer exists there.
func (e *Engine) resolvePeriods(ctx context.Context, artifact *models.ConsentArtifact, elementID, purposeID string) (expiryDays, retentionDays int, resolved bool) {
	cp, err := e.dir.CollectionPoint(ctx, artifact.CollectionPointID, artifact.ApplicationID)
	if err != nil {
		return 0, 0, false
	}
	element, ok := cp.Element(elementID)
	if !ok {
		return 0, 0, false
	}
	purpose, ok := element.Purpose(purposeID)
	if !ok {
		return 0, 0, false
	}
	return element.ExpiryFor(purpose), element.RetentionFor(purpose), true
}

// project renders the read model. A nil collection point, or one that no
// longer declares an element or purpose, degrades the rendering.
func (e *Engine) project(artifact *models.ConsentArtifact, cp *directory.CollectionPoint) models.Projection {
	projection := make(models.Projection, len(artifact.Scope))
	for _, entry := range artifact.Scope {
		title := entry.DataElementID
		var element *directory.DataElementDef
		if cp != nil {
			if el, ok := cp.Element(entry.DataElementID); ok {
				element = el
				if el.Title != "" {
					title = el.Title
				}
			}
		}
		views := make([]models.PurposeView, 0, len(entry.Records))
		for _, rec := range entry.Records {
			description := unknownPurposeDescription
			if element != nil {
				if purpose, ok := element.Purpose(rec.PurposeID); ok && purpose.Description != "" {
					description = purpose.Description
				}
			}
			views = append(views, models.PurposeView{
				PurposeDescription: description,
				ConsentedAt:        rec.ConsentedAt,
				ExpiresAt:          rec.ExpiresAt,
				RetainUntil:        rec.RetainUntil,
				AgreementID:        artifact.AgreementID,
				Granted:            rec.Granted,
				RevokedAt:          rec.RevokedAt,
			})
		}
		projection[title] = views
	}
	return projection
}

func (e *Engine) repopulateCache(ctx context.Context, artifact *models.ConsentArtifact, cp *directory.CollectionPoint) {
	if err := e.cache.Set(ctx, artifact.PrincipalID, artifact.FiduciaryID, e.project(artifact, cp), e.ttl); err != nil {
		e.cacheDegraded(ctx, "set", err)
	}
}

func (e *Engine) invalidateCache(ctx context.Context, principalID, fiduciaryID string) {
	if err := e.cache.Delete(ctx, principalID, fiduciaryID); err != nil {
		e.cacheDegraded(ctx, "delete", err)
	}
}

// cacheDegraded records a swallowed cache failure. The cache is an
// optimization, never a correctness dependency.
func (e *Engine) cacheDegraded(ctx context.Context, op string, err error) {
	e.logger.WarnContext(ctx, "cache degraded", "op", op, "error", err)
	if e.met != nil {
		e.met.CacheFailures.Inc()
	}
}

func (e *Engine) emit(ctx context.Context, action audit.Action, artifact *models.ConsentArtifact, purposeID string) {
	if e.sink == nil {
		return
	}
	event := audit.NewEvent(action, artifact.PrincipalID, artifact.FiduciaryID, artifact.AgreementID)
	event.PurposeID = purposeID
	event.Timestamp = e.clock().UTC()
	if err := e.sink.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "audit publish failed", "action", string(action), "error", err)
	}
}

func (e *Engine) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

func windowEnd(now time.Time, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, days)
}

func statusWord(granted bool) string {
	if granted {
		return "granted"
	}
	return "revoked"
}
