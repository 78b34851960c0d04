package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-marine/internal/logging"
	"github.com/joeblew999/plat-marine/internal/metrics"
)

// Viewer is one globe instance: its layer stack, vector dataset and selection.
type Viewer struct {
	id        string
	createdAt time.Time
	bootstrap BootstrapOptions
	deps      Deps

	provisionMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	visibility  LayerVisibility
	status      ServiceStatus
	layers      *LayerRegistry
	dataSources DataSources
	dataset     *VectorDataset
	selection   *Selection
	lastCamera  Camera
	issued      uint64 // last sequence number handed out
	applied     uint64 // sequence number of the last applied cycle
}

// Deps are the collaborators shared by all viewers.
type Deps struct {
	Provisioner *Provisioner
	Refresher   *VectorRefresher
	Bus         *EventBus
	DatasetName string
}

func newViewer(id string, deps Deps) *Viewer {
	boot := DefaultBootstrap()
	return &Viewer{
		id:         id,
		createdAt:  time.Now(),
		bootstrap:  boot,
		deps:       deps,
		visibility: DefaultVisibility(),
		status:     initialStatus(),
		layers:     NewLayerRegistry(),
		lastCamera: Camera{Height: boot.Camera.Height},
	}
}

// ID returns the viewer identifier.
func (v *Viewer) ID() string { return v.id }

// CreatedAt returns when the viewer was created.
func (v *Viewer) CreatedAt() time.Time { return v.createdAt }

// Bootstrap returns the engine construction options.
func (v *Viewer) Bootstrap() BootstrapOptions { return v.bootstrap }

// Layers returns the imagery stack from bottom to top.
func (v *Viewer) Layers() []LayerState { return v.layers.Snapshot() }

// Registry exposes the layer registry.
func (v *Viewer) Registry() *LayerRegistry { return v.layers }

// Visibility returns the layer visibility flags.
func (v *Viewer) Visibility() LayerVisibility {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visibility
}

// Status returns the service status badges.
func (v *Viewer) Status() ServiceStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Selection returns the current selection, or nil.
func (v *Viewer) Selection() *Selection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection
}

// DataSourceCount returns how many datasets are attached (0 or 1).
func (v *Viewer) DataSourceCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dataSources.Len()
}

// VectorSnapshot is the dataset as handed to the browser.
type VectorSnapshot struct {
	Name     string
	Show     bool
	Version  uint64
	Features *geojson.FeatureCollection
}

// Vector returns the current dataset. Before the first successful refresh
// it is an empty, hidden collection.
func (v *Viewer) Vector() VectorSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dataset == nil {
		return VectorSnapshot{Name: v.deps.DatasetName, Features: geojson.NewFeatureCollection()}
	}
	return VectorSnapshot{
		Name:     v.dataset.Name(),
		Show:     v.dataset.show,
		Version:  v.dataset.Version(),
		Features: v.dataset.Features(),
	}
}

// Toggle flips the visibility of one source and re-provisions.
func (v *Viewer) Toggle(ctx context.Context, id SourceID) (LayerVisibility, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return LayerVisibility{}, ErrViewerClosed
	}
	v.visibility = v.visibility.Toggle(id)
	vis := v.visibility
	v.mu.Unlock()

	if err := v.Provision(ctx); err != nil {
		return vis, err
	}
	return v.Visibility(), nil
}

// Provision runs a provisioning pass followed by an eager vector refresh
// using the last reported camera pose. Passes are serialized per viewer.
func (v *Viewer) Provision(ctx context.Context) error {
	v.provisionMu.Lock()
	defer v.provisionMu.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewerClosed
	}
	vis := v.visibility
	v.mu.Unlock()

	report := v.deps.Provisioner.Provision(ctx, v.layers, vis)

	v.mu.Lock()
	changed := false
	if _, failed := report.Failed[ProtectedAreas]; failed {
		changed = v.status.settle(StatusError) || changed
	} else if v.layers.Has(ProtectedAreas) {
		changed = v.status.settle(StatusActive) || changed
	}
	cam := v.lastCamera
	v.mu.Unlock()

	if changed {
		v.publish(EventStatus)
	}
	v.publish(EventLayers)

	if _, err := v.Refresh(ctx, cam); err != nil {
		return err
	}
	return nil
}

// CameraMoved records the pose and runs a refresh cycle for it.
func (v *Viewer) CameraMoved(ctx context.Context, cam Camera) (RefreshResult, error) {
	v.mu.Lock()
	v.lastCamera = cam
	v.mu.Unlock()
	return v.Refresh(ctx, cam)
}

// Refresh runs one viewport-driven vector refresh cycle.
//
// Each cycle that changes the dataset takes a sequence number; a fetch
// response older than the last applied cycle is discarded.
func (v *Viewer) Refresh(ctx context.Context, cam Camera) (RefreshResult, error) {
	log := logging.With("refresh")

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return RefreshResult{}, ErrViewerClosed
	}

	if !v.visibility.ProtectedAreas {
		res := v.hideLocked(RefreshDisabled)
		v.mu.Unlock()
		return v.finish(res), nil
	}

	outcome, queryURL := v.deps.Refresher.plan(cam)
	switch outcome {
	case RefreshSkipped:
		res := v.resultLocked(RefreshSkipped, 0)
		v.mu.Unlock()
		return v.finish(res), nil
	case RefreshHidden:
		res := v.hideLocked(RefreshHidden)
		v.mu.Unlock()
		return v.finish(res), nil
	}

	v.issued++
	seq := v.issued
	v.mu.Unlock()

	fc, err := v.deps.Refresher.client.Features(ctx, queryURL)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return RefreshResult{}, ErrViewerClosed
	}
	if err != nil {
		log.Warn().Err(err).Str("viewer", v.id).Uint64("seq", seq).Msg("bbox vector load skipped")
		return v.finish(v.resultLocked(RefreshFailed, seq)), nil
	}
	if seq < v.applied {
		log.Debug().Str("viewer", v.id).Uint64("seq", seq).Uint64("applied", v.applied).Msg("stale vector response discarded")
		return v.finish(v.resultLocked(RefreshStale, seq)), nil
	}

	if v.dataset == nil {
		ds := newVectorDataset(v.deps.DatasetName)
		if err := v.dataSources.Add(ds); err != nil {
			return RefreshResult{}, err
		}
		v.dataset = ds
	}
	v.applied = seq
	v.dataset.Load(fc)
	v.dataset.show = true
	statusChanged := v.status.settle(StatusActive)
	metrics.VectorFeatures.Observe(float64(v.dataset.Len()))

	res := v.resultLocked(RefreshFetched, seq)
	v.publish(EventVector)
	if statusChanged {
		v.publish(EventStatus)
	}
	return v.finish(res), nil
}

// hideLocked hides the dataset and takes a sequence number so that
// in-flight older fetches cannot show it again.
func (v *Viewer) hideLocked(outcome RefreshOutcome) RefreshResult {
	v.issued++
	v.applied = v.issued
	if v.dataset != nil && v.dataset.show {
		v.dataset.show = false
		v.publish(EventVector)
	}
	return v.resultLocked(outcome, v.issued)
}

func (v *Viewer) resultLocked(outcome RefreshOutcome, seq uint64) RefreshResult {
	res := RefreshResult{Outcome: outcome, Seq: seq}
	if v.dataset != nil {
		res.Features = v.dataset.Len()
		res.Show = v.dataset.show
		res.Version = v.dataset.Version()
	}
	return res
}

func (v *Viewer) finish(res RefreshResult) RefreshResult {
	metrics.VectorRefreshes.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

// Pick hit-tests the displayed dataset at p (lon/lat degrees), preferring
// the engine-picked entityID when given. p is nil when the click missed the
// globe. A miss clears the selection.
func (v *Viewer) Pick(p *orb.Point, entityID string) (*Selection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrViewerClosed
	}

	var sel *Selection
	if v.dataset != nil && v.dataset.show {
		if f, ok := HitTest(v.dataset.Features(), p, entityID); ok {
			sel = Inspect(f)
		}
	}

	v.selection = sel
	if sel != nil {
		metrics.Picks.WithLabelValues("hit").Inc()
	} else {
		metrics.Picks.WithLabelValues("miss").Inc()
	}
	v.publish(EventSelection)
	return sel, nil
}

// ClearSelection closes the detail panel.
func (v *Viewer) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection = nil
	v.publish(EventSelection)
}

// close marks the viewer torn down. Later calls return ErrViewerClosed.
func (v *Viewer) close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.publish(EventClosed)
}

// publish is safe under v.mu: Publish never blocks.
func (v *Viewer) publish(kind EventKind) {
	if v.deps.Bus != nil {
		v.deps.Bus.Publish(Event{Viewer: v.id, Kind: kind})
	}
}

// ViewerService manages viewer sessions.
type ViewerService struct {
	deps    Deps
	viewers map[string]*Viewer
	mu      sync.RWMutex
}

// NewViewerService creates a new viewer service.
func NewViewerService(deps Deps) *ViewerService {
	if deps.Bus == nil {
		deps.Bus = NewEventBus()
	}
	if deps.DatasetName == "" {
		deps.DatasetName = "WDPA-Vector"
	}
	return &ViewerService{deps: deps, viewers: make(map[string]*Viewer)}
}

// Bus returns the event bus viewers publish to.
func (s *ViewerService) Bus() *EventBus { return s.deps.Bus }

// Create bootstraps a viewer and runs its first provisioning pass.
func (s *ViewerService) Create(ctx context.Context) (*Viewer, error) {
	v := newViewer(uuid.NewString(), s.deps)

	s.mu.Lock()
	s.viewers[v.id] = v
	n := len(s.viewers)
	s.mu.Unlock()
	metrics.ActiveViewers.Set(float64(n))

	logging.Info().Str("viewer", v.id).Msg("viewer created")
	if err := v.Provision(ctx); err != nil {
		_ = s.Delete(v.id)
		return nil, fmt.Errorf("provisioning viewer %s: %w", v.id, err)
	}
	return v, nil
}

// Get returns a viewer by ID.
func (s *ViewerService) Get(id string) (*Viewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.viewers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrViewerNotFound, id)
	}
	return v, nil
}

// Delete tears a viewer down.
func (s *ViewerService) Delete(id string) error {
	s.mu.Lock()
	v, ok := s.viewers[id]
	delete(s.viewers, id)
	n := len(s.viewers)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrViewerNotFound, id)
	}
	metrics.ActiveViewers.Set(float64(n))

	v.close()
	s.deps.Bus.CloseViewer(id)
	logging.Info().Str("viewer", id).Msg("viewer destroyed")
	return nil
}

// List returns the live viewers, oldest first.
func (s *ViewerService) List() []*Viewer {
	s.mu.RLock()
	out := make([]*Viewer, 0, len(s.viewers))
	for _, v := range s.viewers {
		out = append(out, v)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].createdAt.Before(out[j].createdAt) })
	return out
}

// Len returns the number of live viewers.
func (s *ViewerService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.viewers)
}
