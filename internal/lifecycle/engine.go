package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ecociclo/ecociclo/internal/claim"
	"github.com/ecociclo/ecociclo/internal/notification"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/reward"
)

// Transition errors.
var (
	ErrPointNotFound  = errors.New("collection point not found")
	ErrClaimNotFound  = errors.New("claim not found")
	ErrAlreadyClaimed = errors.New("collection point already has an active claim")
	ErrNotClaimable   = errors.New("collection point is not available")
	ErrClaimNotActive = errors.New("claim is not active")
	ErrNotOwner       = errors.New("caller does not own the collection point")
	ErrNotClaimHolder = errors.New("caller does not hold the claim")
	ErrActiveClaim    = errors.New("collection point has an active claim")
	ErrNotReopenable  = errors.New("collection point cannot be reopened")
)

// Store applies lifecycle transitions atomically. Each method either fully
// applies the transition or leaves the store unchanged.
type Store interface {
	GetPoint(ctx context.Context, id string) (*point.CollectionPoint, error)
	CreatePoint(ctx context.Context, p *point.CollectionPoint) error
	GetClaim(ctx context.Context, id string) (*claim.Claim, error)
	ActiveClaim(ctx context.Context, pointID string) (*claim.Claim, error)

	// Claim inserts the claim and marks the point claimed. Returns
	// ErrAlreadyClaimed if the point already carries an active claim.
	Claim(ctx context.Context, c *claim.Claim) error

	// Cancel marks the claim cancelled and returns the point to
	// available, clearing its claim fields.
	Cancel(ctx context.Context, c *claim.Claim, reason *string, at time.Time) error

	// Complete marks the claim and point completed and credits the
	// point's owning resident in the same transaction. Returns the
	// owner's new eco-credit balance.
	Complete(ctx context.Context, c *claim.Claim, credit int, at time.Time) (int, error)

	// Reopen inserts the replacement point and removes the original
	// atomically.
	Reopen(ctx context.Context, originalID string, replacement *point.CollectionPoint) error

	DeletePoint(ctx context.Context, id string) error
}

// Events receives committed transitions, e.g. to publish them on the change
// feed. Methods are called after the store transaction commits and must not
// block.
type Events interface {
	// PointChanged reports a point row change. Kind is one of "insert",
	// "update" or "delete"; old and new follow row-change conventions
	// (old nil on insert, new nil on delete).
	PointChanged(kind string, old, new *point.CollectionPoint)

	// BalanceChanged reports a user's new eco-credit balance.
	BalanceChanged(userID string, balance int)
}

// Engine validates transition preconditions and drives the store. It also
// records the notifications each transition owes to the counterparty.
type Engine struct {
	store         Store
	notifications notification.Repository
	logger        *slog.Logger
	events        Events
	now           func() time.Time
}

// NewEngine creates a lifecycle engine.
func NewEngine(store Store, notifications notification.Repository, logger *slog.Logger) *Engine {
	return &Engine{
		store:         store,
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// SetEvents installs the transition sink. Must be called before the engine
// serves requests.
func (e *Engine) SetEvents(ev Events) {
	e.events = ev
}

// CompletionResult carries the outcome of a completed collection.
// NewBalance is the point owner's eco-credit balance after the credit.
type CompletionResult struct {
	Claim      *claim.Claim
	NewBalance int
}

// Create registers a new collection point in status available.
func (e *Engine) Create(ctx context.Context, p *point.CollectionPoint) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Status = point.StatusAvailable
	p.ClaimID = nil
	p.PickupTime = nil
	p.RecyclerID = nil
	if p.CreatedAt.IsZero() {
		p.CreatedAt = e.now()
	}
	if err := e.store.CreatePoint(ctx, p); err != nil {
		return fmt.Errorf("failed to create collection point: %w", err)
	}
	if e.events != nil {
		e.events.PointChanged("insert", nil, p)
	}
	return nil
}

// Claim places an active claim on an available point. The claim and the
// point update land atomically; a concurrent claim on the same point fails
// with ErrAlreadyClaimed.
func (e *Engine) Claim(ctx context.Context, pointID, recyclerID string, pickupTime time.Time) (*claim.Claim, error) {
	p, err := e.store.GetPoint(ctx, pointID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case point.StatusAvailable:
	case point.StatusClaimed:
		return nil, ErrAlreadyClaimed
	default:
		return nil, ErrNotClaimable
	}

	c := &claim.Claim{
		ID:                uuid.New().String(),
		CollectionPointID: p.ID,
		RecyclerID:        recyclerID,
		UserID:            p.UserID,
		Status:            claim.StatusClaimed,
		PickupTime:        &pickupTime,
		ClaimedAt:         e.now(),
	}
	if err := e.store.Claim(ctx, c); err != nil {
		return nil, err
	}
	if e.events != nil {
		before := *p
		after := *p
		after.Status = point.StatusClaimed
		after.ClaimID = &c.ID
		after.PickupTime = c.PickupTime
		after.RecyclerID = &c.RecyclerID
		e.events.PointChanged("update", &before, &after)
	}

	e.notify(ctx, p.UserID, "Punto Reclamado",
		"Un reciclador ha reclamado tu punto de recolección.",
		notification.TypeCollectionClaimed, p.ID)
	return c, nil
}

// Cancel cancels an active claim and returns the point to available. Either
// the claim holder or the point owner may cancel.
func (e *Engine) Cancel(ctx context.Context, claimID, actorID string, reason *string) error {
	c, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if !c.Active() {
		return ErrClaimNotActive
	}
	if actorID != c.RecyclerID && actorID != c.UserID {
		return ErrNotClaimHolder
	}
	if err := e.store.Cancel(ctx, c, reason, e.now()); err != nil {
		return err
	}
	e.publishPoint(ctx, c.CollectionPointID)
	e.logger.Info("claim cancelled",
		"claim_id", c.ID,
		"collection_point_id", c.CollectionPointID,
		"actor_id", actorID)
	return nil
}

// Complete marks an active claim completed, moves the point to completed
// and credits the point's owning resident, all in one transaction. The
// resident is notified after the transaction commits.
func (e *Engine) Complete(ctx context.Context, claimID, recyclerID string) (*CompletionResult, error) {
	c, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !c.Active() {
		return nil, ErrClaimNotActive
	}
	if c.RecyclerID != recyclerID {
		return nil, ErrNotClaimHolder
	}

	at := e.now()
	balance, err := e.store.Complete(ctx, c, reward.CompletionCredit, at)
	if err != nil {
		return nil, err
	}
	c.Status = claim.StatusCompleted
	c.CompletedAt = &at
	e.publishPoint(ctx, c.CollectionPointID)
	if e.events != nil {
		e.events.BalanceChanged(c.UserID, balance)
	}

	e.notify(ctx, c.UserID, "Recolección Completada",
		"Tu punto de recolección ha sido recolectado.",
		notification.TypeCollectionCompleted, c.CollectionPointID)

	e.logger.Info("collection completed",
		"claim_id", c.ID,
		"collection_point_id", c.CollectionPointID,
		"recycler_id", recyclerID,
		"owner_balance", balance)
	return &CompletionResult{Claim: c, NewBalance: balance}, nil
}

// Reopen replaces a completed or delayed point with a fresh available copy
// of its descriptive fields and removes the original. Only the owner may
// reopen. A claimed point whose pickup is still in the future cannot be
// reopened; a delayed one can, abandoning its active claim (the claim row
// goes with the original point).
func (e *Engine) Reopen(ctx context.Context, pointID, ownerID string) (*point.CollectionPoint, error) {
	p, err := e.store.GetPoint(ctx, pointID)
	if err != nil {
		return nil, err
	}
	if p.UserID != ownerID {
		return nil, ErrNotOwner
	}
	if p.Status == point.StatusClaimed && StateOf(p, e.now()) != StateDelayed {
		return nil, ErrNotReopenable
	}

	replacement := p.CopyDescriptive()
	replacement.ID = uuid.New().String()
	replacement.CreatedAt = e.now()
	if err := e.store.Reopen(ctx, p.ID, replacement); err != nil {
		return nil, err
	}
	if e.events != nil {
		e.events.PointChanged("delete", p, nil)
		e.events.PointChanged("insert", nil, replacement)
	}
	return replacement, nil
}

// Delete removes a point. Only the owner may delete, and a point with an
// active claim cannot be deleted.
func (e *Engine) Delete(ctx context.Context, pointID, ownerID string) error {
	p, err := e.store.GetPoint(ctx, pointID)
	if err != nil {
		return err
	}
	if p.UserID != ownerID {
		return ErrNotOwner
	}
	active, err := e.store.ActiveClaim(ctx, p.ID)
	if err != nil {
		return err
	}
	if active != nil {
		return ErrActiveClaim
	}
	if err := e.store.DeletePoint(ctx, p.ID); err != nil {
		return err
	}
	if e.events != nil {
		e.events.PointChanged("delete", p, nil)
	}
	return nil
}

// publishPoint refetches a point after a transition and reports it as an
// update. Transitions that already hold the row skip the refetch.
func (e *Engine) publishPoint(ctx context.Context, pointID string) {
	if e.events == nil {
		return
	}
	p, err := e.store.GetPoint(ctx, pointID)
	if err != nil {
		e.logger.Warn("failed to load point for change event",
			"collection_point_id", pointID,
			"error", err)
		return
	}
	e.events.PointChanged("update", nil, p)
}

func (e *Engine) notify(ctx context.Context, userID, title, content, typ, relatedID string) {
	n := &notification.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Type:      typ,
		RelatedID: &relatedID,
		CreatedAt: e.now(),
	}
	if err := e.notifications.Insert(ctx, n); err != nil {
		e.logger.Warn("failed to insert notification",
			"user_id", userID,
			"type", typ,
			"error", err)
	}
}
