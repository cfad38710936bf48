package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bilant/internal/core"
	"bilant/internal/storage"
)

type countingStore struct {
	storage.Store
	mu   sync.Mutex
	puts map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{Store: storage.NewMemoryStore(), puts: map[string]int{}}
}

func (c *countingStore) Put(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.puts[key]++
	c.mu.Unlock()
	return c.Store.Put(ctx, key, value)
}

func (c *countingStore) putCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts[key]
}

type recordingSink struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Put(_ context.Context, filename string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.files == nil {
		r.files = map[string][]byte{}
	}
	r.files[filename] = append([]byte(nil), data...)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

func fixedClock(t time.Time) core.Clock {
	return func() time.Time { return t }
}

func syncAfter(_ time.Duration, f func()) { f() }

func TestFilename(t *testing.T) {
	got := Filename(time.Date(2025, 8, 10, 14, 3, 9, 0, time.UTC))
	if want := "bilant_backup_20250810T140309.json"; got != want {
		t.Errorf("Filename() = %s, want %s", got, want)
	}
}

func TestScheduler_OncePerDay(t *testing.T) {
	ctx := context.Background()
	kv := newCountingStore()
	sink := &recordingSink{}

	now := time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	exp := NewExporter(kv, clock, nil, sink)
	sched := NewScheduler(exp, kv, nil, WithClock(clock), WithAfterFunc(syncAfter))

	for i := 0; i < 5; i++ {
		sched.OnMutation(ctx, core.Cash)
	}
	if got := kv.putCount(core.KeyLastBackupDate); got != 1 {
		t.Errorf("lastBackupDate writes = %d, want 1", got)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("exports = %d, want 1", got)
	}
	if last, ok := sched.LastBackup(ctx); !ok || last != "2025-08-10" {
		t.Errorf("LastBackup() = %v, %v, want 2025-08-10", last, ok)
	}

	now = now.Add(24 * time.Hour)
	sched.OnMutation(ctx, core.Debts)
	sched.OnMutation(ctx, core.Debts)
	if got := kv.putCount(core.KeyLastBackupDate); got != 2 {
		t.Errorf("lastBackupDate writes = %d, want 2", got)
	}
	if got := sink.count(); got != 2 {
		t.Errorf("exports = %d, want 2", got)
	}
}

// markerFailStore rejects writes of the lastBackupDate slot.
type markerFailStore struct {
	*countingStore
}

func (m markerFailStore) Put(ctx context.Context, key string, value []byte) error {
	if key == core.KeyLastBackupDate {
		m.countingStore.mu.Lock()
		m.countingStore.puts[key]++
		m.countingStore.mu.Unlock()
		return errors.New("disk full")
	}
	return m.countingStore.Put(ctx, key, value)
}

func TestScheduler_MarkerWriteFails(t *testing.T) {
	ctx := context.Background()
	kv := markerFailStore{newCountingStore()}
	sink := &recordingSink{}
	clock := fixedClock(time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC))

	sched := NewScheduler(NewExporter(kv, clock, nil, sink), kv, nil, WithClock(clock), WithAfterFunc(syncAfter))
	for i := 0; i < 5; i++ {
		sched.OnMutation(ctx, core.Cash)
	}

	if got := sink.count(); got != 1 {
		t.Errorf("exports = %d, want 1 despite the failed marker write", got)
	}
	if got := kv.putCount(core.KeyLastBackupDate); got != 1 {
		t.Errorf("lastBackupDate write attempts = %d, want 1", got)
	}
	if last, ok := sched.LastBackup(ctx); !ok || last != "2025-08-10" {
		t.Errorf("LastBackup() = %v, %v, want 2025-08-10 from memory", last, ok)
	}
}

func TestScheduler_ConcurrentFirstMutation(t *testing.T) {
	ctx := context.Background()
	kv := newCountingStore()
	sink := &recordingSink{}
	clock := fixedClock(time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC))
	sched := NewScheduler(NewExporter(kv, clock, nil, sink), kv, nil, WithClock(clock), WithAfterFunc(syncAfter))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.OnMutation(ctx, core.Debts)
		}()
	}
	wg.Wait()

	if got := kv.putCount(core.KeyLastBackupDate); got != 1 {
		t.Errorf("lastBackupDate writes = %d, want 1", got)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("exports = %d, want 1", got)
	}
}

func TestScheduler_GuardSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := newCountingStore()
	clock := fixedClock(time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC))
	if err := kv.Store.Put(ctx, core.KeyLastBackupDate, []byte(`"2025-08-10"`)); err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	sched := NewScheduler(NewExporter(kv, clock, nil, sink), kv, nil, WithClock(clock), WithAfterFunc(syncAfter))
	sched.OnMutation(ctx, core.Cash)

	if sink.count() != 0 {
		t.Errorf("exports = %d, want 0 after an earlier backup today", sink.count())
	}
}

func TestScheduler_ExportNowIgnoresGuard(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	clock := fixedClock(time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC))
	kv.Put(ctx, core.KeyLastBackupDate, []byte(`"2025-08-10"`))

	sink := &recordingSink{}
	sched := NewScheduler(NewExporter(kv, clock, nil, sink), kv, nil, WithClock(clock))
	res, err := sched.ExportNow(ctx)
	if err != nil {
		t.Fatalf("ExportNow() error = %v", err)
	}
	if res.Filename != "bilant_backup_20250810T090000.json" {
		t.Errorf("ExportNow() filename = %s", res.Filename)
	}
	if sink.count() != 1 {
		t.Errorf("exports = %d, want 1", sink.count())
	}
}

func TestExporter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := storage.NewMemoryStore()
	values := map[string]string{
		"cash":                 `{"2025-08-10":[{"account":"Checking","balance":2358}]}`,
		core.KeyConfig:         `{"minWage":4050}`,
		core.KeyLastBackupDate: `"2025-08-10"`,
		core.KeyInstallments:   `{"2026":[{"dueDate":"15/01/2026","amount":1917}]}`,
		core.KeySelectedTab:    `"balance"`,
	}
	for k, v := range values {
		if err := src.Put(ctx, k, []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	clock := fixedClock(time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC))
	res, err := NewExporter(src, clock, nil).Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	dst := storage.NewMemoryStore()
	keys, err := NewExporter(dst, clock, nil).Import(ctx, res.Data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(keys) != len(values) {
		t.Errorf("Import() keys = %v, want %d", keys, len(values))
	}

	for k, want := range values {
		got, ok, err := dst.Get(ctx, k)
		if err != nil || !ok {
			t.Fatalf("Get(%s) = %v, %v", k, ok, err)
		}
		if diff := cmp.Diff(want, string(got)); diff != "" {
			t.Errorf("value %s mismatch (-want +got):\n%s", k, diff)
		}
	}
}

func TestExporter_SkipsInvalidJSON(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	kv.Put(ctx, "good", []byte(`[1,2]`))
	kv.Put(ctx, "bad", []byte(`{not json`))

	b, err := NewExporter(kv, nil, nil).Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if _, ok := b.Data["bad"]; ok {
		t.Errorf("Snapshot() kept invalid value")
	}
	if string(b.Data["good"]) != "[1,2]" {
		t.Errorf("Snapshot() good = %s", b.Data["good"])
	}
	if b.Version != Version {
		t.Errorf("Snapshot() version = %s, want %s", b.Version, Version)
	}
}

func TestExporter_ImportRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `garbage`},
		{"missing data", `{"timestamp":"2025-08-10T00:00:00Z","version":"1.0"}`},
		{"null data", `{"version":"1.0","data":null}`},
		{"data not an object", `{"data":[1,2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.NewMemoryStore()
			kv.Put(ctx, "cash", []byte(`{}`))

			_, err := NewExporter(kv, nil, nil).Import(ctx, []byte(tt.raw))
			if !errors.Is(err, ErrInvalidBundle) {
				t.Fatalf("Import() error = %v, want ErrInvalidBundle", err)
			}
			keys, _ := kv.Keys(ctx)
			if diff := cmp.Diff([]string{"cash"}, keys); diff != "" {
				t.Errorf("store changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExporter_ImportSkipsNulls(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	kv.Put(ctx, "debts", []byte(`{"kept":true}`))

	raw := `{"version":"1.0","data":{"cash":{ "a" : 1 },"debts":null}}`
	keys, err := NewExporter(kv, nil, nil).Import(ctx, []byte(raw))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if diff := cmp.Diff([]string{"cash"}, keys); diff != "" {
		t.Errorf("Import() keys mismatch (-want +got):\n%s", diff)
	}
	if got, _, _ := kv.Get(ctx, "cash"); string(got) != `{"a":1}` {
		t.Errorf("cash = %s, want compacted value", got)
	}
	if got, _, _ := kv.Get(ctx, "debts"); string(got) != `{"kept":true}` {
		t.Errorf("debts = %s, want untouched", got)
	}
}

func TestExporter_SinkFailure(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	good := &recordingSink{}
	bad := &recordingSink{err: errors.New("disk full")}

	res, err := NewExporter(kv, nil, nil, good, bad).Export(ctx)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Export() error = %v, want sink failure", err)
	}
	if good.count() != 1 {
		t.Errorf("good sink exports = %d, want 1", good.count())
	}
	if diff := cmp.Diff([]string{"recording"}, res.Sinks); diff != "" {
		t.Errorf("Export() sinks mismatch (-want +got):\n%s", diff)
	}
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	sink := DirSink{Dir: dir}
	if err := sink.Put(context.Background(), "b.json", []byte(`{}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "b.json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("file = %s, want {}", data)
	}
}
