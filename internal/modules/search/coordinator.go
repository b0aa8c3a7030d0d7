// README: Search coordinator debounces queries, waits for a first fix and publishes distance-sorted results.
package search

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"nearby/internal/modules/location"
	"nearby/internal/notify"
	"nearby/internal/observability"
	"nearby/internal/types"
)

const (
	defaultDebounce     = 500 * time.Millisecond
	defaultRadiusMeters = 5000
)

// LocationSource is the view of a location.Source the coordinator needs.
type LocationSource interface {
	PermissionState() location.PermissionState
	CurrentSample() (location.Sample, bool)
	Subscribe() (<-chan location.Sample, func())
	RequestAccess(ctx context.Context) error
}

// PlaceSearcher runs a free-text place search biased to a region.
type PlaceSearcher interface {
	Search(ctx context.Context, query string, region types.Region) ([]types.Place, error)
}

type Options struct {
	Debounce     time.Duration
	RadiusMeters float64
	// InitialQuery is fed through the debounce when Run starts.
	InitialQuery string
	Clock        clockwork.Clock
	Logger       logrus.FieldLogger
	Metrics      *observability.Metrics
	NewID        func() types.ID
}

// Coordinator owns one query and its result set. All state below the
// inbox is touched only by the goroutine executing Run.
type Coordinator struct {
	places   PlaceSearcher
	enricher *EnrichmentManager
	debounce time.Duration
	radius   float64
	initial  string
	clock    clockwork.Clock
	logger   logrus.FieldLogger
	metrics  *observability.Metrics
	newID    func() types.ID

	inbox   chan func()
	done    chan struct{}
	running atomic.Bool

	runCtx       context.Context
	query        string
	lastEmitted  string
	emitted      bool
	debounceSeq  uint64
	timer        clockwork.Timer
	source       LocationSource
	awaitArmed   bool
	awaitingFix  bool
	stopAwait    func()
	generation   uint64
	cancelSearch context.CancelFunc
	isSearching  bool
	results      []Result

	mu      sync.RWMutex
	snap    Snapshot
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

func NewCoordinator(places PlaceSearcher, enricher *EnrichmentManager, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = defaultRadiusMeters
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	if opts.NewID == nil {
		opts.NewID = func() types.ID { return types.ID(uuid.NewString()) }
	}
	return &Coordinator{
		places:   places,
		enricher: enricher,
		debounce: opts.Debounce,
		radius:   opts.RadiusMeters,
		initial:  opts.InitialQuery,
		clock:    opts.Clock,
		logger:   opts.Logger.WithField("component", "search"),
		metrics:  opts.Metrics,
		newID:    opts.NewID,
		inbox:    make(chan func()),
		done:     make(chan struct{}),
		results:  []Result{},
		snap:     Snapshot{Results: []Result{}},
		subs:     make(map[uint64]chan Snapshot),
	}
}

// Run executes coordinator work until ctx is done. Public methods block
// until Run is executing.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	c.runCtx = ctx
	defer c.shutdown()

	if c.initial != "" {
		c.setQuery(c.initial)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.inbox:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// SetQuery records the query and restarts the debounce window.
func (c *Coordinator) SetQuery(text string) error {
	return c.do(func() { c.setQuery(text) })
}

// ConnectLocationSource binds src. Only the first binding takes effect.
func (c *Coordinator) ConnectLocationSource(src LocationSource) error {
	return c.do(func() { c.connect(src) })
}

// Enrich starts an ETA request for the result with the given ID and returns
// that result as currently published.
func (c *Coordinator) Enrich(id types.ID) (Result, error) {
	var (
		res Result
		err error
	)
	if doErr := c.do(func() { res, err = c.enrich(id) }); doErr != nil {
		return Result{}, doErr
	}
	return res, err
}

// Snapshot returns the last published state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Subscribe returns a channel holding the most recent unread snapshot,
// primed with the current one. The returned func is safe to call more than once.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snap
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// do runs fn on the owner goroutine and waits for it to finish.
func (c *Coordinator) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case c.inbox <- func() { fn(); close(ran) }:
	case <-c.done:
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// post queues fn without waiting. It must not be called from the owner goroutine.
func (c *Coordinator) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

func (c *Coordinator) setQuery(text string) {
	c.query = text
	c.publish()

	c.debounceSeq++
	seq := c.debounceSeq
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.clock.AfterFunc(c.debounce, func() {
		go c.post(func() { c.debounceFired(seq) })
	})
}

func (c *Coordinator) debounceFired(seq uint64) {
	if seq != c.debounceSeq {
		return
	}
	c.timer = nil
	q := c.query
	c.logger.WithField("query", q).Debug("debounce elapsed")
	if c.emitted && q == c.lastEmitted {
		c.logger.WithField("query", q).Debug("query unchanged; not searching")
		return
	}
	c.handleQuery(q)
}

// handleQuery acts on an emitted query. A query that cannot be searched for
// lack of a fix is not recorded, so typing it again later still searches.
func (c *Coordinator) handleQuery(q string) {
	if q == "" {
		c.markEmitted(q)
		c.cancelInFlight()
		c.generation++
		c.isSearching = false
		c.results = []Result{}
		c.publish()
		return
	}
	sample, ok := c.currentSample()
	if !ok {
		c.logger.WithField("query", q).Debug("no location yet; waiting for first fix")
		c.armAwaitFirstFix()
		return
	}
	c.dispatch(q, sample)
}

func (c *Coordinator) connect(src LocationSource) {
	if c.source != nil {
		c.logger.Debug("location source already connected")
		return
	}
	c.source = src
	if sample, ok := src.CurrentSample(); ok {
		if c.query != "" {
			c.dispatch(c.query, sample)
		}
		return
	}
	c.armAwaitFirstFix()
}

// armAwaitFirstFix subscribes to the source once per coordinator lifetime.
func (c *Coordinator) armAwaitFirstFix() {
	if c.awaitArmed || c.source == nil {
		return
	}
	c.awaitArmed = true
	c.awaitingFix = true

	ch, unsubscribe := c.source.Subscribe()
	if sample, ok := c.source.CurrentSample(); ok {
		unsubscribe()
		c.firstFix(sample)
		return
	}

	stop := make(chan struct{})
	var once sync.Once
	c.stopAwait = func() {
		once.Do(func() {
			close(stop)
			unsubscribe()
		})
	}
	go func() {
		select {
		case sample := <-ch:
			unsubscribe()
			c.post(func() { c.firstFix(sample) })
		case <-stop:
		case <-c.done:
		}
	}()
}

// firstFix searches with whatever query is current when the fix arrives,
// unless a search already went out since the wait was armed.
func (c *Coordinator) firstFix(sample location.Sample) {
	q := c.query
	c.logger.WithField("query", q).Info("first location fix received")
	if !c.awaitingFix {
		c.logger.WithField("query", q).Debug("search already dispatched; ignoring first fix")
		return
	}
	c.stopAwaitingFix()
	if q == "" {
		return
	}
	c.dispatch(q, sample)
}

func (c *Coordinator) stopAwaitingFix() {
	c.awaitingFix = false
	if c.stopAwait != nil {
		c.stopAwait()
		c.stopAwait = nil
	}
}

func (c *Coordinator) markEmitted(q string) {
	c.emitted = true
	c.lastEmitted = q
}

func (c *Coordinator) currentSample() (location.Sample, bool) {
	if c.source == nil {
		return location.Sample{}, false
	}
	return c.source.CurrentSample()
}

func (c *Coordinator) dispatch(q string, origin location.Sample) {
	c.markEmitted(q)
	c.stopAwaitingFix()
	c.cancelInFlight()
	c.generation++
	gen := c.generation

	ctx, cancel := context.WithCancel(c.runCtx)
	c.cancelSearch = cancel
	c.isSearching = true
	c.publish()
	c.metrics.SearchesDispatched.Inc()

	c.logger.WithFields(logrus.Fields{"query": q, "generation": gen}).Debug("dispatching search")

	region := types.Region{Center: origin.Point, RadiusMeters: c.radius}
	started := c.clock.Now()
	go func() {
		places, err := c.places.Search(ctx, q, region)
		c.post(func() { c.complete(gen, q, origin.Point, started, places, err) })
	}()
}

func (c *Coordinator) complete(gen uint64, q string, origin types.Point, started time.Time, places []types.Place, err error) {
	c.metrics.SearchDuration.Observe(c.clock.Since(started).Seconds())
	fields := logrus.Fields{"query": q, "generation": gen}
	if gen != c.generation {
		c.metrics.SearchCompletions.WithLabelValues("stale").Inc()
		c.logger.WithFields(fields).Debug("discarding superseded search")
		return
	}
	c.cancelInFlight()
	c.isSearching = false

	if err != nil {
		c.metrics.SearchCompletions.WithLabelValues("error").Inc()
		c.logger.WithFields(fields).WithError(err).Warn("place search failed")
		c.results = []Result{}
		c.publish()
		return
	}
	c.metrics.SearchCompletions.WithLabelValues("success").Inc()
	c.results = c.toResults(places, origin)
	c.logger.WithFields(fields).WithField("results", len(c.results)).Debug("search completed")
	c.publish()
}

// toResults drops places without coordinates and sorts the rest by
// distance from origin, keeping provider order for ties.
func (c *Coordinator) toResults(places []types.Place, origin types.Point) []Result {
	out := make([]Result, 0, len(places))
	for _, p := range places {
		if p.Coordinates == nil || !p.Coordinates.Valid() {
			c.metrics.PlacesDropped.Inc()
			continue
		}
		out = append(out, Result{
			ID:             c.newID(),
			ProviderID:     p.ProviderID,
			Name:           p.Name,
			Address:        p.Address,
			Coordinates:    *p.Coordinates,
			DistanceMeters: location.DistanceMeters(origin, *p.Coordinates),
		})
	}
	location.SortByDistance(out, func(r Result) float64 { return r.DistanceMeters })
	return out
}

func (c *Coordinator) enrich(id types.ID) (Result, error) {
	var target *Result
	for i := range c.results {
		if c.results[i].ID == id {
			target = &c.results[i]
			break
		}
	}
	if target == nil {
		return Result{}, ErrResultNotFound
	}
	sample, ok := c.currentSample()
	if !ok {
		return Result{}, ErrNoLocation
	}
	c.enricher.start(c.runCtx, id, sample.Point, target.Coordinates, func(eta time.Duration) {
		c.post(func() { c.mergeETA(id, eta) })
	})
	return *target, nil
}

func (c *Coordinator) mergeETA(id types.ID, eta time.Duration) {
	results, ok := applyETA(c.results, id, eta)
	if !ok {
		c.metrics.Enrichments.WithLabelValues("discarded").Inc()
		c.logger.WithField("result_id", id).Debug("eta target no longer present")
		return
	}
	c.metrics.Enrichments.WithLabelValues("success").Inc()
	c.results = results
	c.publish()
}

func (c *Coordinator) cancelInFlight() {
	if c.cancelSearch != nil {
		c.cancelSearch()
		c.cancelSearch = nil
	}
}

func (c *Coordinator) publish() {
	snap := Snapshot{
		Query:       c.query,
		IsSearching: c.isSearching,
		Results:     c.results,
		Generation:  c.generation,
	}
	c.mu.Lock()
	c.snap = snap
	for _, ch := range c.subs {
		notify.Latest(ch, snap)
	}
	c.mu.Unlock()
}

func (c *Coordinator) shutdown() {
	c.cancelInFlight()
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.stopAwait != nil {
		c.stopAwait()
	}
}
