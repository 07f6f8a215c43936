package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/ecociclo/ecociclo/internal/feed"
	"github.com/ecociclo/ecociclo/internal/point"
	"github.com/ecociclo/ecociclo/internal/profile"
	"github.com/ecociclo/ecociclo/internal/reward"
	"github.com/ecociclo/ecociclo/internal/viewstate"
)

// Default polling intervals. Points change rarely and poll slowly; recycler
// presence changes constantly and polls fast.
const (
	DefaultPointsInterval    = 30 * time.Second
	DefaultRecyclersInterval = 5 * time.Second
)

// Source provides fresh snapshots after a mutation or feed event. Snapshot
// reads always go back to the source of truth rather than patching local
// state from event payloads.
type Source interface {
	// PointsSnapshot returns the user's detailed collection points.
	PointsSnapshot(ctx context.Context, userID string) ([]point.DetailedPoint, error)

	// RecyclersSnapshot returns the recyclers currently online.
	RecyclersSnapshot(ctx context.Context) ([]profile.Profile, error)

	// Balance returns the user's current eco-credit balance.
	Balance(ctx context.Context, userID string) (int, error)
}

// Notice is a user-facing notification produced by the controller.
type Notice struct {
	Title string
	Body  string
	Type  string
}

// Config configures a synchronization controller.
type Config struct {
	// UserID identifies the session owner.
	UserID string

	// FeedURL is the change feed endpoint. Empty disables feed
	// subscriptions; polling still runs.
	FeedURL string

	// PointsInterval and RecyclersInterval override the polling cadence.
	PointsInterval    time.Duration
	RecyclersInterval time.Duration

	// Cooldown overrides the notification throttle window.
	Cooldown time.Duration

	// ViewState persists the session's tab selection and cached presence
	// across restarts. Nil disables persistence.
	ViewState viewstate.Store

	Logger  *slog.Logger
	Metrics *Metrics
}

// Controller keeps one user session in sync with the server.
type Controller struct {
	config     Config
	source     Source
	throttle   *Throttle
	thresholds *reward.ThresholdTracker

	pointsGuard    SnapshotGuard
	recyclersGuard SnapshotGuard

	mu        gosync.Mutex
	points    []point.DetailedPoint
	recyclers []profile.Profile
	activeTab string
	syncing   int
	running   bool
	cancel    context.CancelFunc
	doneCh    chan struct{}

	notices chan Notice
}

// NewController creates a controller for one user session.
func NewController(config Config, source Source) (*Controller, error) {
	if config.UserID == "" {
		return nil, errors.New("controller user ID is required")
	}
	if source == nil {
		return nil, errors.New("controller source is required")
	}
	if config.PointsInterval <= 0 {
		config.PointsInterval = DefaultPointsInterval
	}
	if config.RecyclersInterval <= 0 {
		config.RecyclersInterval = DefaultRecyclersInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Controller{
		config:     config,
		source:     source,
		throttle:   NewThrottle(config.Cooldown),
		thresholds: reward.NewThresholdTracker(),
		notices:    make(chan Notice, 16),
	}, nil
}

// Start restores persisted view state, performs the initial refresh and
// launches the pollers and feed subscriptions. It returns immediately.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	c.restoreViewState(ctx)

	if err := c.RefreshPoints(ctx); err != nil {
		c.config.Logger.Warn("initial points refresh failed", "error", err)
	}
	if err := c.RefreshRecyclers(ctx); err != nil {
		c.config.Logger.Warn("initial recyclers refresh failed", "error", err)
	}

	var wg gosync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pollLoop(runCtx)
	}()

	if c.config.FeedURL != "" {
		for _, sub := range c.subscriptions() {
			wg.Add(1)
			go func(sub feed.ClientConfig) {
				defer wg.Done()
				c.runSubscription(runCtx, sub)
			}(sub)
		}
	}

	go func() {
		wg.Wait()
		close(c.doneCh)
	}()
	return nil
}

// Stop shuts down the pollers and subscriptions and persists view state.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	doneCh := c.doneCh
	c.mu.Unlock()

	cancel()
	<-doneCh

	c.persistViewState(context.Background())

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Resume refetches both datasets immediately, e.g. when the session regains
// visibility after being backgrounded.
func (c *Controller) Resume(ctx context.Context) {
	if err := c.RefreshPoints(ctx); err != nil {
		c.config.Logger.Warn("resume points refresh failed", "error", err)
	}
	if err := c.RefreshRecyclers(ctx); err != nil {
		c.config.Logger.Warn("resume recyclers refresh failed", "error", err)
	}
}

// RefreshPoints refetches the points snapshot. A response that lost the
// race against a later refetch is discarded.
func (c *Controller) RefreshPoints(ctx context.Context) error {
	ticket := c.pointsGuard.Begin()
	c.beginSync()
	defer c.endSync()

	start := time.Now()
	snapshot, err := c.source.PointsSnapshot(ctx, c.config.UserID)
	if err != nil {
		return fmt.Errorf("failed to refresh points: %w", err)
	}
	if c.config.Metrics != nil {
		c.config.Metrics.ObserveRefreshLatency(time.Since(start).Seconds())
	}

	if !c.pointsGuard.Commit(ticket) {
		if c.config.Metrics != nil {
			c.config.Metrics.IncStaleSnapshots("points")
		}
		c.config.Logger.Debug("discarding stale points snapshot", "ticket", ticket)
		return nil
	}
	if c.config.Metrics != nil {
		c.config.Metrics.IncRefreshes("points")
	}

	c.mu.Lock()
	c.points = snapshot
	c.mu.Unlock()
	return nil
}

// RefreshRecyclers refetches the online recycler snapshot.
func (c *Controller) RefreshRecyclers(ctx context.Context) error {
	ticket := c.recyclersGuard.Begin()
	c.beginSync()
	defer c.endSync()

	snapshot, err := c.source.RecyclersSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh recyclers: %w", err)
	}

	if !c.recyclersGuard.Commit(ticket) {
		if c.config.Metrics != nil {
			c.config.Metrics.IncStaleSnapshots("recyclers")
		}
		return nil
	}
	if c.config.Metrics != nil {
		c.config.Metrics.IncRefreshes("recyclers")
	}

	c.mu.Lock()
	c.recyclers = snapshot
	c.mu.Unlock()
	return nil
}

// Points returns the current points snapshot.
func (c *Controller) Points() []point.DetailedPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.points
}

// Recyclers returns the current online recycler snapshot.
func (c *Controller) Recyclers() []profile.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recyclers
}

// Syncing reports whether a refresh is in flight.
func (c *Controller) Syncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncing > 0
}

// ActiveTab returns the session's selected tab.
func (c *Controller) ActiveTab() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeTab
}

// SetActiveTab records the session's selected tab.
func (c *Controller) SetActiveTab(tab string) {
	c.mu.Lock()
	c.activeTab = tab
	c.mu.Unlock()
}

// Notices returns the channel of user-facing notifications. Notices are
// dropped rather than blocking when the consumer falls behind.
func (c *Controller) Notices() <-chan Notice {
	return c.notices
}

func (c *Controller) beginSync() {
	c.mu.Lock()
	c.syncing++
	c.mu.Unlock()
}

func (c *Controller) endSync() {
	c.mu.Lock()
	c.syncing--
	c.mu.Unlock()
}

// pollLoop drives the periodic refetches.
func (c *Controller) pollLoop(ctx context.Context) {
	points := time.NewTicker(c.config.PointsInterval)
	defer points.Stop()
	recyclers := time.NewTicker(c.config.RecyclersInterval)
	defer recyclers.Stop()

	for {
		select {
		case <-ctx.Done():
			c.config.Logger.Info("sync pollers stopping")
			return
		case <-points.C:
			if err := c.RefreshPoints(ctx); err != nil {
				c.config.Logger.Warn("points poll failed", "error", err)
			}
		case <-recyclers.C:
			if err := c.RefreshRecyclers(ctx); err != nil {
				c.config.Logger.Warn("recyclers poll failed", "error", err)
			}
		}
	}
}

// subscriptions builds the per-table feed client configs. Each subscription
// carries its own backoff policy.
func (c *Controller) subscriptions() []feed.ClientConfig {
	return []feed.ClientConfig{
		{
			URL:          c.config.FeedURL,
			Table:        feed.TablePoints,
			Filter:       feed.Filter{Column: "user_id", Value: c.config.UserID},
			Backoff:      PointsBackoff,
			JitterFactor: 0.2,
		},
		{
			URL:     c.config.FeedURL,
			Table:   feed.TableProfiles,
			Backoff: RecyclersBackoff,
		},
		{
			URL:     c.config.FeedURL,
			Table:   feed.TableMessages,
			Filter:  feed.Filter{Column: "receiver_id", Value: c.config.UserID},
			Backoff: MessagesBackoff,
		},
	}
}

// runSubscription runs one feed client until the context ends or its
// reconnection budget is spent. Polling keeps the session converging even
// after a subscription gives up.
func (c *Controller) runSubscription(ctx context.Context, cfg feed.ClientConfig) {
	table := cfg.Table
	status := func(s string) {
		if s == feed.StatusError && c.config.Metrics != nil {
			c.config.Metrics.IncFeedReconnects(table)
		}
	}

	client, err := feed.NewClient(cfg, func(e *feed.Envelope) error {
		c.handleEnvelope(ctx, e)
		return nil
	}, status, c.config.Logger)
	if err != nil {
		c.config.Logger.Error("failed to create feed client",
			"table", table, "error", err)
		return
	}

	err = client.Run(ctx)
	if errors.Is(err, feed.ErrAttemptsExhausted) {
		c.config.Logger.Warn("feed subscription gave up, relying on polling",
			"table", table)
	}
}

// handleEnvelope reacts to one change event: notify (throttled) and refetch
// the affected dataset.
func (c *Controller) handleEnvelope(ctx context.Context, e *feed.Envelope) {
	switch e.Table {
	case feed.TablePoints:
		if n, ok := pointNotice(e); ok {
			c.notifyThrottled("points:"+c.config.UserID, n)
		}
		if err := c.RefreshPoints(ctx); err != nil {
			c.config.Logger.Warn("feed-triggered points refresh failed", "error", err)
		}
	case feed.TableProfiles:
		c.checkRewardMilestone(ctx, e)
		if err := c.RefreshRecyclers(ctx); err != nil {
			c.config.Logger.Warn("feed-triggered recyclers refresh failed", "error", err)
		}
	case feed.TableMessages:
		if e.Kind == feed.KindInsert {
			c.notifyThrottled("messages:"+c.config.UserID, Notice{
				Title: "Nuevo mensaje",
				Body:  "Tienes un mensaje nuevo.",
				Type:  "new_message",
			})
		}
	}
}

// pointNotice decides whether a points event deserves a notice. Only two
// transitions matter to the session owner: a recycler claiming one of their
// points and a claim being completed. Inserts and deletes are the owner's
// own actions and stay silent, as do edits that leave the point available.
func pointNotice(e *feed.Envelope) (Notice, bool) {
	if e.Kind != feed.KindUpdate {
		return Notice{}, false
	}
	row, err := e.Row()
	if err != nil || row == nil {
		return Notice{}, false
	}
	switch fmt.Sprint(row["status"]) {
	case point.StatusClaimed:
		return Notice{
			Title: "¡Punto reclamado!",
			Body:  "Un reciclador reclamó uno de tus puntos de recolección.",
			Type:  "point_claimed",
		}, true
	case point.StatusCompleted:
		return Notice{
			Title: "Recolección completada",
			Body:  "Una de tus recolecciones fue completada.",
			Type:  "point_completed",
		}, true
	}
	return Notice{}, false
}

// checkRewardMilestone fires a congratulation notice when the session
// owner's balance reaches a new multiple of the reward step. The milestone
// fires once per step per session.
func (c *Controller) checkRewardMilestone(ctx context.Context, e *feed.Envelope) {
	row, err := e.Row()
	if err != nil || row == nil {
		return
	}
	if fmt.Sprint(row["user_id"]) != c.config.UserID {
		return
	}
	balance, ok := toInt(row["eco_creditos"])
	if !ok {
		var err error
		balance, err = c.source.Balance(ctx, c.config.UserID)
		if err != nil {
			return
		}
	}
	if c.thresholds.Check(balance) {
		c.emit(Notice{
			Title: "¡Felicidades!",
			Body:  fmt.Sprintf("Alcanzaste %d EcoCréditos.", balance),
			Type:  "eco_creditos_reward",
		})
	}
}

func (c *Controller) notifyThrottled(key string, n Notice) {
	if !c.throttle.Allow(key) {
		if c.config.Metrics != nil {
			c.config.Metrics.IncNotificationsDropped()
		}
		return
	}
	if c.config.Metrics != nil {
		c.config.Metrics.IncNotificationsAllowed()
	}
	c.emit(n)
}

func (c *Controller) emit(n Notice) {
	select {
	case c.notices <- n:
	default:
	}
}

func (c *Controller) restoreViewState(ctx context.Context) {
	if c.config.ViewState == nil {
		return
	}
	tab, err := c.config.ViewState.Get(ctx, c.config.UserID, viewstate.KeyActiveTab)
	if err == nil {
		c.SetActiveTab(tab)
	} else if !errors.Is(err, viewstate.ErrNotFound) {
		c.config.Logger.Warn("failed to restore view state", "error", err)
	}
}

func (c *Controller) persistViewState(ctx context.Context) {
	if c.config.ViewState == nil {
		return
	}
	tab := c.ActiveTab()
	if tab == "" {
		return
	}
	if err := c.config.ViewState.Set(ctx, c.config.UserID, viewstate.KeyActiveTab, tab); err != nil {
		c.config.Logger.Warn("failed to persist view state", "error", err)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
