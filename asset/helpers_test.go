package asset

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/wippyai/asset-runtime/jobs"
)

type testMesh struct {
	Name  string
	Refs  []*Reference
	drops *atomic.Int32
}

func (m *testMesh) AssetReferences() []*Reference { return m.Refs }

func (m *testMesh) Drop() {
	if m.drops != nil {
		m.drops.Add(1)
	}
}

type memSource struct {
	data  map[AssetID]string
	reads map[AssetID]int
	mu    sync.Mutex
}

func newMemSource() *memSource {
	return &memSource{data: make(map[AssetID]string), reads: make(map[AssetID]int)}
}

func (s *memSource) put(id AssetID, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = v
}

func (s *memSource) readCount(id AssetID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[id]
}

func (s *memSource) ReadAsset(ctx context.Context, info AssetInfo) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[info.ID]
	if !ok {
		return nil, fmt.Errorf("no data for %s", info.ID)
	}
	s.reads[info.ID]++
	return []byte(v), nil
}

// meshHandler builds testMesh payloads. Fields are read-only once a test
// starts loading.
type meshHandler struct {
	deps   map[AssetID][]Reference
	fail   map[AssetID]error
	panics map[AssetID]bool
	drops  atomic.Int32
	calls  atomic.Int32
}

func newMeshHandler() *meshHandler {
	return &meshHandler{
		deps:   make(map[AssetID][]Reference),
		fail:   make(map[AssetID]error),
		panics: make(map[AssetID]bool),
	}
}

func (h *meshHandler) Deserialize(lc *LoadContext, data []byte) (any, error) {
	h.calls.Add(1)
	if h.panics[lc.ID()] {
		panic("corrupt mesh")
	}
	if err := h.fail[lc.ID()]; err != nil {
		return nil, err
	}
	m := &testMesh{Name: string(data), drops: &h.drops}
	for _, r := range h.deps[lc.ID()] {
		ref := r
		m.Refs = append(m.Refs, &ref)
	}
	_ = lc.Resolve(m.Refs...)
	return m, nil
}

type testEnv struct {
	m       *Manager
	sched   *jobs.Manual
	src     *memSource
	handler *meshHandler
	mesh    TypeTag
}

func newTestEnv(t *testing.T, log *zap.Logger) *testEnv {
	t.Helper()
	sched := jobs.NewManual()
	src := newMemSource()
	m, err := Create(Descriptor{Scheduler: sched, Source: src, Logger: log})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := newMeshHandler()
	tag, err := Register[*testMesh](m, "MeshAsset", h)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	t.Cleanup(func() { _ = m.Destroy() })
	return &testEnv{m: m, sched: sched, src: src, handler: h, mesh: tag}
}

// settle runs every job and pumps until nothing is left.
func (e *testEnv) settle() {
	for {
		ran := e.sched.RunAll()
		applied := e.m.DispatchEvents()
		if ran == 0 && applied == 0 && e.sched.Pending() == 0 {
			return
		}
	}
}

type eventRecorder struct {
	events []Event
	mu     sync.Mutex
}

func (r *eventRecorder) OnAssetEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(t EventType, id AssetID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t && e.ID == id {
			n++
		}
	}
	return n
}

func (r *eventRecorder) types(id AssetID) []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, e := range r.events {
		if e.ID == id {
			out = append(out, e.Type)
		}
	}
	return out
}
