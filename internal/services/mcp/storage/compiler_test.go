package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

type memoryStore struct {
	mu       sync.Mutex
	entries  map[ManifestKey][]byte
	getErr   error
	putErr   error
	putCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[ManifestKey][]byte{}}
}

func (m *memoryStore) GetManifest(_ context.Context, key ManifestKey) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	manifest, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return manifest, nil
}

func (m *memoryStore) PutManifest(_ context.Context, key ManifestKey, manifest []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[key] = manifest
	return nil
}

func (m *memoryStore) PruneManifests(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type countingCompiler struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (c *countingCompiler) Compile(ctx context.Context, name, source string) (*tx3.Protocol, error) {
	c.calls.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return &tx3.Protocol{
		Name:      name,
		IRVersion: "v1alpha1",
		Transactions: []tx3.Transaction{{
			Name:   source,
			Params: []tx3.Param{{Name: "amount", Type: tx3.ParamInt}},
			IR:     []byte{0x01, 0x02},
		}},
	}, nil
}

func TestKeyFor(t *testing.T) {
	a := KeyFor("acme", "protocol one")
	b := KeyFor("acme", "protocol two")
	if a == b {
		t.Fatal("expected different sources to produce different keys")
	}
	if a != KeyFor("acme", "protocol one") {
		t.Fatal("expected stable key")
	}
	if len(a.SourceHash) != 64 {
		t.Fatalf("expected hex sha256, got %q", a.SourceHash)
	}
}

func TestCachingCompilerHitSkipsCompiler(t *testing.T) {
	store := newMemoryStore()
	next := &countingCompiler{}
	compiler, err := NewCachingCompiler(next, store)
	if err != nil {
		t.Fatalf("new caching compiler: %v", err)
	}

	first, err := compiler.Compile(context.Background(), "acme", "swap")
	if err != nil {
		t.Fatalf("first compile: %v", err)
	}
	second, err := compiler.Compile(context.Background(), "acme", "swap")
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if next.calls.Load() != 1 {
		t.Fatalf("expected one compile, got %d", next.calls.Load())
	}
	if first == second {
		t.Fatal("expected independent protocol values per call")
	}
	tx, err := second.NewTransaction("swap")
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	if tx.IRHex() != "0102" || tx.Params[0].Type != tx3.ParamInt || second.Version() != "v1alpha1" {
		t.Fatalf("unexpected cached transaction %+v", tx)
	}
}

func TestCachingCompilerSourceChangeRecompiles(t *testing.T) {
	store := newMemoryStore()
	next := &countingCompiler{}
	compiler, _ := NewCachingCompiler(next, store)

	if _, err := compiler.Compile(context.Background(), "acme", "swap"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	protocol, err := compiler.Compile(context.Background(), "acme", "mint")
	if err != nil {
		t.Fatalf("compile changed source: %v", err)
	}
	if next.calls.Load() != 2 {
		t.Fatalf("expected recompile after source change, got %d calls", next.calls.Load())
	}
	if protocol.Transactions[0].Name != "mint" {
		t.Fatalf("expected fresh protocol, got %+v", protocol)
	}
}

func TestCachingCompilerStoreFailuresFallBack(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("disk I/O error")
	store.putErr = errors.New("readonly database")
	next := &countingCompiler{}
	compiler, _ := NewCachingCompiler(next, store)

	protocol, err := compiler.Compile(context.Background(), "acme", "swap")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if protocol.Name != "acme" || store.putCalls != 1 {
		t.Fatalf("unexpected result %+v (puts %d)", protocol, store.putCalls)
	}
}

func TestCachingCompilerCorruptEntryRecompiles(t *testing.T) {
	store := newMemoryStore()
	store.entries[KeyFor("acme", "swap")] = []byte("{broken")
	next := &countingCompiler{}
	compiler, _ := NewCachingCompiler(next, store)

	if _, err := compiler.Compile(context.Background(), "acme", "swap"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if next.calls.Load() != 1 {
		t.Fatalf("expected recompile of corrupt entry, got %d calls", next.calls.Load())
	}
}

func TestCachingCompilerDoesNotCacheFailures(t *testing.T) {
	store := newMemoryStore()
	next := &countingCompiler{err: errors.New("syntax error")}
	compiler, _ := NewCachingCompiler(next, store)

	for i := 0; i < 2; i++ {
		if _, err := compiler.Compile(context.Background(), "acme", "swap"); err == nil {
			t.Fatal("expected compile error")
		}
	}
	if next.calls.Load() != 2 || store.putCalls != 0 {
		t.Fatalf("calls=%d puts=%d", next.calls.Load(), store.putCalls)
	}
}

func TestCachingCompilerSharesConcurrentCompiles(t *testing.T) {
	store := newMemoryStore()
	next := &countingCompiler{gate: make(chan struct{})}
	compiler, _ := NewCachingCompiler(next, store)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := compiler.Compile(context.Background(), "acme", "swap")
			errs <- err
		}()
	}
	// Let callers pile up behind the first compile before releasing it.
	deadline := time.Now().Add(time.Second)
	for next.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(next.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
	}
	// Late callers may hit the cache or start a second flight, never more
	// than one compile per wave.
	if calls := next.calls.Load(); calls < 1 || calls > 2 {
		t.Fatalf("expected shared compile, got %d calls", calls)
	}
}

func TestCachingCompilerCanceledCallerDoesNotFailOthers(t *testing.T) {
	store := newMemoryStore()
	next := &countingCompiler{gate: make(chan struct{})}
	compiler, _ := NewCachingCompiler(next, store)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := compiler.Compile(firstCtx, "acme", "swap")
		firstErr <- err
	}()
	deadline := time.Now().Add(time.Second)
	for next.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	type outcome struct {
		protocol *tx3.Protocol
		err      error
	}
	second := make(chan outcome, 1)
	go func() {
		protocol, err := compiler.Compile(context.Background(), "acme", "swap")
		second <- outcome{protocol: protocol, err: err}
	}()

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled caller to stop, got %v", err)
	}
	close(next.gate)

	got := <-second
	if got.err != nil {
		t.Fatalf("waiting caller failed: %v", got.err)
	}
	if got.protocol == nil || got.protocol.Transactions[0].Name != "swap" {
		t.Fatalf("unexpected protocol %+v", got.protocol)
	}
	if calls := next.calls.Load(); calls < 1 || calls > 2 {
		t.Fatalf("expected shared compile, got %d calls", calls)
	}
}

func TestNewCachingCompilerRequiresDependencies(t *testing.T) {
	if _, err := NewCachingCompiler(nil, newMemoryStore()); err == nil {
		t.Fatal("expected error for missing compiler")
	}
	if _, err := NewCachingCompiler(&countingCompiler{}, nil); err == nil {
		t.Fatal("expected error for missing store")
	}
}
