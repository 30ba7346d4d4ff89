// Package service contains the business logic layer.
//
// This file implements the delegated intake: the token-authenticated
// channel through which an establishment contact captures phase 0 photos
// or marks POIs as not applicable.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/lifecycle"
	"github.com/DukeRupert/vistoria/internal/metrics"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/google/uuid"
)

// =============================================================================
// Types
// =============================================================================

// ItemStatus is the state of a POI as seen by the delegated contact.
type ItemStatus string

const (
	ItemPending       ItemStatus = "pending"
	ItemCaptured      ItemStatus = "captured"
	ItemNotApplicable ItemStatus = "not_applicable"
)

// DelegatedItem is one POI on the delegated capture page.
type DelegatedItem struct {
	InstanceID uuid.UUID  `json:"instanceId"`
	PoiID      string     `json:"poiId"`
	Title      string     `json:"title"`
	Status     ItemStatus `json:"status"`
	PhotoURL   string     `json:"photoUrl,omitempty"`
	Comment    string     `json:"comment,omitempty"`
}

// DelegatedView is what a valid access link shows.
type DelegatedView struct {
	InspectionID      uuid.UUID       `json:"inspectionId"`
	EstablishmentName string          `json:"establishmentName"`
	Address           string          `json:"address"`
	ExpiresAt         time.Time       `json:"expiresAt"`
	Progress          domain.Progress `json:"progress"`
	Items             []DelegatedItem `json:"items"`
}

// CaptureParams is a phase 0 capture made by the contact. With
// NotApplicable set the photo is dropped and the fixed not applicable
// comment replaces Comment.
type CaptureParams struct {
	PoiID           string
	DataURL         string
	NotApplicable   bool
	TimestampMillis int64
	Location        *domain.GeoLocation
	Comment         string
}

// BulkOutcome is the result of one POI in a bulk not applicable request.
type BulkOutcome string

const (
	BulkApplied BulkOutcome = "applied"
	BulkSkipped BulkOutcome = "skipped"
	BulkError   BulkOutcome = "error"
)

// BulkResult reports what happened to one requested POI.
type BulkResult struct {
	PoiID   string      `json:"poiId"`
	Outcome BulkOutcome `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
}

// =============================================================================
// Implementation
// =============================================================================

// DelegatedIntake serves delegated access links.
//
// Every operation resolves the token first. Unknown tokens fail with
// domain.ETOKENINVALID and expired ones with domain.ETOKENEXPIRED before
// anything else is read or written.
type DelegatedIntake struct {
	store   Store
	catalog *catalog.Catalog
	machine *lifecycle.Machine
	photos  *storage.PhotoStore
	logger  *slog.Logger
	now     Clock
}

// NewDelegatedIntake creates a DelegatedIntake.
func NewDelegatedIntake(
	store Store,
	cat *catalog.Catalog,
	machine *lifecycle.Machine,
	photos *storage.PhotoStore,
	logger *slog.Logger,
) *DelegatedIntake {
	return &DelegatedIntake{
		store:   store,
		catalog: cat,
		machine: machine,
		photos:  photos,
		logger:  logger,
		now:     time.Now,
	}
}

// resolve validates a token and loads the inspection it grants access to.
func (d *DelegatedIntake) resolve(ctx context.Context, op, token string) (*domain.DelegatedAccess, *domain.Inspection, error) {
	if token == "" {
		metrics.TokenRejections.WithLabelValues("invalid").Inc()
		return nil, nil, domain.TokenInvalid(op)
	}

	access, err := d.store.GetDelegatedAccess(ctx, token)
	if err != nil {
		if domain.ErrorCode(err) == domain.ETOKENINVALID {
			metrics.TokenRejections.WithLabelValues("invalid").Inc()
			return nil, nil, domain.TokenInvalid(op)
		}
		return nil, nil, err
	}
	if access.IsExpired(d.now()) {
		metrics.TokenRejections.WithLabelValues("expired").Inc()
		return nil, nil, domain.TokenExpired(op)
	}

	insp, err := d.store.GetInspection(ctx, access.InspectionID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			metrics.TokenRejections.WithLabelValues("invalid").Inc()
			return nil, nil, domain.TokenInvalid(op)
		}
		return nil, nil, err
	}
	if !insp.IsDelegated() {
		metrics.TokenRejections.WithLabelValues("invalid").Inc()
		return nil, nil, domain.TokenInvalid(op)
	}
	return access, insp, nil
}

// instanceFor locates the single instance of poiID. A catalog POI the
// inspection has no instance of yet gets a fresh, unsaved one; created
// tells the caller to persist it with AddInstance.
func (d *DelegatedIntake) instanceFor(op string, insp *domain.Inspection, poiID string) (inst *domain.PoiInstance, created bool, err error) {
	if _, ok := d.catalog.Lookup(poiID); !ok {
		return nil, false, domain.CatalogMiss(op, poiID)
	}
	if existing := insp.InstanceForPOI(poiID); existing != nil {
		return existing, false, nil
	}
	fresh := delegatedInstance(poiID)
	return &fresh, true, nil
}

// persist writes next, inserting it when it was created by instanceFor,
// and mirrors it into insp.
func (d *DelegatedIntake) persist(ctx context.Context, insp *domain.Inspection, current, next *domain.PoiInstance, created bool) error {
	if created {
		if err := d.store.AddInstance(ctx, insp.ID, next); err != nil {
			return err
		}
		insp.Instances = append(insp.Instances, *next)
		d.logger.Info("delegated instance created",
			"inspection_id", insp.ID,
			"instance_id", next.ID,
			"poi_id", next.PoiID,
		)
		return nil
	}
	if err := d.store.SaveInstance(ctx, insp.ID, next); err != nil {
		return err
	}
	*current = *next
	return nil
}

// =============================================================================
// View
// =============================================================================

// View lists the POIs of the inspection with their capture state.
func (d *DelegatedIntake) View(ctx context.Context, token string) (*DelegatedView, error) {
	const op = "delegated.view"

	access, insp, err := d.resolve(ctx, op, token)
	if err != nil {
		return nil, err
	}

	view := &DelegatedView{
		InspectionID:      insp.ID,
		EstablishmentName: insp.EstablishmentName,
		Address:           insp.Address,
		ExpiresAt:         access.ExpiresAt,
		Progress:          lifecycle.ComputeProgress(insp),
		Items:             make([]DelegatedItem, 0, len(insp.Instances)),
	}

	for i := range insp.Instances {
		inst := &insp.Instances[i]
		item := DelegatedItem{
			InstanceID: inst.ID,
			PoiID:      inst.PoiID,
			Title:      inst.PoiID,
			Status:     ItemPending,
		}
		if poi, ok := d.catalog.Lookup(inst.PoiID); ok {
			item.Title = poi.Title
		}

		f := inst.Finding()
		switch {
		case inst.IsNotApplicable():
			item.Status = ItemNotApplicable
			item.Comment = f.Comment
		case f.HasPhoto():
			item.Status = ItemCaptured
			item.Comment = f.Comment
			url, err := d.photos.Resolve(ctx, f.DataURL)
			if err != nil {
				d.logger.Warn("failed to resolve photo",
					"inspection_id", insp.ID,
					"instance_id", inst.ID,
					"error", err,
				)
			} else {
				item.PhotoURL = url
			}
		}
		view.Items = append(view.Items, item)
	}
	return view, nil
}

// =============================================================================
// Capture
// =============================================================================

// Capture records the contact's phase 0 photo of a POI, or marks the POI
// not applicable, replacing an earlier photo.
//
// The instance is created on the first capture of a POI. It stays at
// phase 0 awaiting the inspector's review. Any recommendation selection is
// dropped.
func (d *DelegatedIntake) Capture(ctx context.Context, token string, params CaptureParams) (*domain.PoiInstance, error) {
	const op = "delegated.capture"

	_, insp, err := d.resolve(ctx, op, token)
	if err != nil {
		return nil, err
	}

	kind := "capture"
	if params.NotApplicable {
		kind = "not_applicable"
	}

	current, created, err := d.instanceFor(op, insp, params.PoiID)
	if err != nil {
		metrics.DelegatedCaptures.WithLabelValues(kind, resultLabel(err)).Inc()
		return nil, err
	}

	sub := domain.PhaseSubmission{
		DataURL:         params.DataURL,
		TimestampMillis: params.TimestampMillis,
		Location:        params.Location,
		Comment:         params.Comment,
		Origin:          domain.OriginDelegated,
	}
	if params.NotApplicable {
		sub.DataURL = ""
		sub.NotApplicable = true
		sub.Comment = domain.NotApplicableComment
	}

	next := current.Clone()
	err = d.machine.Submit(insp.Type, &next, domain.PhaseFinding, sub)
	if err == nil {
		err = d.persist(ctx, insp, current, &next, created)
	}
	metrics.DelegatedCaptures.WithLabelValues(kind, resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	d.logger.Info("delegated capture recorded",
		"inspection_id", insp.ID,
		"instance_id", next.ID,
		"poi_id", next.PoiID,
		"not_applicable", params.NotApplicable,
	)
	return &next, nil
}

// UploadPhoto stores a photo for the phase 0 of a POI and returns the key
// to pass as the capture's data URL. A POI without an instance gets one
// first so the key names a stable instance.
func (d *DelegatedIntake) UploadPhoto(ctx context.Context, token, poiID, contentType string, data []byte) (string, error) {
	const op = "delegated.upload_photo"

	_, insp, err := d.resolve(ctx, op, token)
	if err != nil {
		return "", err
	}
	inst, created, err := d.instanceFor(op, insp, poiID)
	if err != nil {
		return "", err
	}
	if created {
		if err := d.persist(ctx, insp, nil, inst, true); err != nil {
			return "", err
		}
	}
	return d.photos.Store(ctx, storage.Upload{
		InspectionID: insp.ID,
		InstanceID:   inst.ID,
		Phase:        domain.PhaseFinding,
		ContentType:  contentType,
		Data:         data,
	})
}

// =============================================================================
// Bulk Not Applicable
// =============================================================================

// BulkMarkNotApplicable marks several POIs as not applicable to the site.
//
// Only POIs whose phase 0 is unset, or pending without a photo, are marked;
// the others are skipped. A failure on one POI is reported in its result and
// never stops the batch. The returned slice holds one result per requested
// id, in request order.
func (d *DelegatedIntake) BulkMarkNotApplicable(ctx context.Context, token string, poiIDs []string) ([]BulkResult, error) {
	const op = "delegated.bulk_not_applicable"

	_, insp, err := d.resolve(ctx, op, token)
	if err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(poiIDs))
	applied := 0
	for _, poiID := range poiIDs {
		res := d.markNotApplicable(ctx, op, insp, poiID)
		if res.Outcome == BulkApplied {
			applied++
		}
		metrics.DelegatedCaptures.WithLabelValues("not_applicable", string(res.Outcome)).Inc()
		results = append(results, res)
	}

	d.logger.Info("delegated bulk not applicable",
		"inspection_id", insp.ID,
		"requested", len(poiIDs),
		"applied", applied,
	)
	return results, nil
}

func (d *DelegatedIntake) markNotApplicable(ctx context.Context, op string, insp *domain.Inspection, poiID string) BulkResult {
	res := BulkResult{PoiID: poiID}

	current, created, err := d.instanceFor(op, insp, poiID)
	if err != nil {
		res.Outcome = BulkError
		res.Reason = domain.ErrorMessage(err)
		return res
	}
	if !eligibleForNotApplicable(current) {
		res.Outcome = BulkSkipped
		res.Reason = "already answered"
		return res
	}

	next := current.Clone()
	err = d.machine.Submit(insp.Type, &next, domain.PhaseFinding, domain.PhaseSubmission{
		NotApplicable: true,
		Comment:       domain.NotApplicableComment,
		Origin:        domain.OriginDelegated,
	})
	if err == nil {
		err = d.persist(ctx, insp, current, &next, created)
	}
	if err != nil {
		d.logger.Warn("bulk not applicable failed",
			"inspection_id", insp.ID,
			"poi_id", poiID,
			"error", err,
		)
		res.Outcome = BulkError
		res.Reason = domain.ErrorMessage(err)
		return res
	}

	res.Outcome = BulkApplied
	return res
}

// eligibleForNotApplicable reports whether the contact has not answered
// the POI yet.
func eligibleForNotApplicable(inst *domain.PoiInstance) bool {
	if inst.CurrentPhase != domain.PhaseFinding {
		return false
	}
	f := inst.Finding()
	if f == nil {
		return true
	}
	return f.Status == domain.PhaseStatusPending && !f.HasPhoto()
}
