package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []activity.ScanEvent
}

func (r *recorder) Track(e activity.ScanEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []activity.ScanType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.ScanType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newService(t *testing.T, cfg Config, items ...content.Item) (*Service, *content.MemoryStore) {
	t.Helper()
	store := content.NewMemoryStore(nil)
	for _, item := range items {
		if item.Status == "" {
			item.Status = content.StatusPublish
		}
		store.Put(item)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://example.test"
	}
	svc, err := New(store, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, store
}

func sampleSite() []content.Item {
	return []content.Item{
		{ID: 1, ContentType: content.TypePage, Title: "Home", Slug: "home",
			Body: `<!-- wp:paragraph /--><!-- wp:image /--><!-- wp:paragraph /-->`},
		{ID: 2, ContentType: content.TypePost, Title: "News",
			Body: `<!-- wp:paragraph /--><!-- wp:block {"ref":10} /-->`},
		{ID: 3, ContentType: content.TypePage, Title: "Draft", Status: "draft",
			Body: `<!-- wp:table /-->`},
		{ID: 10, ContentType: content.TypeFragment, Title: "Footer",
			Body: `<!-- wp:quote /-->`},
		{ID: 20, ContentType: content.TypeAttachment, Title: "Logo",
			Body: `<!-- wp:cover /-->`},
	}
}

func TestEnumerateDefaultTypes(t *testing.T) {
	svc, store := newService(t, Config{}, sampleSite()...)
	store.AddType(content.Type{Name: "event", Public: true})
	store.AddType(content.Type{Name: "private_log", Public: false})

	enum, err := svc.Enumerate(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var types []string
	for _, g := range enum {
		types = append(types, g.Type)
	}
	if want := []string{"event", "post", "page"}; !reflect.DeepEqual(types, want) {
		t.Errorf("types = %v, want %v", types, want)
	}
	if ids, _ := enum.Lookup("page"); !reflect.DeepEqual(ids, []content.ItemID{1}) {
		t.Errorf("page ids = %v, drafts must be skipped", ids)
	}
	if ids, ok := enum.Lookup("event"); !ok || ids == nil || len(ids) != 0 {
		t.Errorf("expected empty non-nil list for event, got %v", ids)
	}
}

func TestEnumerateUnknownTypeIsEmpty(t *testing.T) {
	svc, _ := newService(t, Config{})
	// Scenario C: no posts at all.
	enum, err := svc.Enumerate(context.Background(), []string{"post", " post ", "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if len(enum) != 2 {
		t.Fatalf("expected post and nope keys, got %+v", enum)
	}
	for _, g := range enum {
		if g.IDs == nil || len(g.IDs) != 0 {
			t.Errorf("%s: expected empty list, got %v", g.Type, g.IDs)
		}
	}

	idx, err := svc.BuildUsageIndex(context.Background(), []string{"post"})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %v", idx.BlockTypes())
	}
}

func TestListBlocksForItemScenarios(t *testing.T) {
	svc, _ := newService(t, Config{}, sampleSite()...)
	ctx := context.Background()

	got, err := svc.ListBlocksForItem(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"core/paragraph", "core/image"}; !reflect.DeepEqual(got, want) {
		t.Errorf("scenario A: got %v, want %v", got, want)
	}

	got, err = svc.ListBlocksForItem(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, name := range got {
		if name == "core/quote" {
			found = true
		}
	}
	if !found {
		t.Errorf("scenario B: expected core/quote via fragment, got %v", got)
	}
}

func TestBuildUsageIndex(t *testing.T) {
	svc, _ := newService(t, Config{}, sampleSite()...)

	idx, err := svc.BuildUsageIndex(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	// post before page in builtin order, so item 2 is enumerated first.
	want := []string{"core/paragraph", "core/block", "core/quote", "core/image"}
	if got := idx.BlockTypes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("block types = %v, want %v", got, want)
	}
	para, _ := idx.Lookup("core/paragraph")
	if len(para.Usages) != 2 || para.Usages[0].ID != 2 || para.Usages[1].ID != 1 {
		t.Errorf("unexpected paragraph usages %+v", para.Usages)
	}
	if para.Usages[1].ContentType != "page" || para.Usages[1].ViewURL != "https://example.test/home/" {
		t.Errorf("unexpected display metadata %+v", para.Usages[1])
	}
	if para.Usages[0].EditURL != "https://example.test/wp-admin/post.php?post=2&action=edit" {
		t.Errorf("unexpected edit url %q", para.Usages[0].EditURL)
	}
	if _, ok := idx.Lookup("core/cover"); ok {
		t.Error("attachments must not be scanned")
	}
	if _, ok := idx.Lookup("core/table"); ok {
		t.Error("drafts must not be scanned")
	}
	if idx.Items != 2 || idx.Pairs() != 5 {
		t.Errorf("items=%d pairs=%d", idx.Items, idx.Pairs())
	}
}

func TestBuildUsageIndexIdempotent(t *testing.T) {
	svc, _ := newService(t, Config{}, sampleSite()...)
	ctx := context.Background()

	a, err := svc.BuildUsageIndex(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.BuildUsageIndex(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("builds must not be retained between calls")
	}
	if !reflect.DeepEqual(a.Buckets, b.Buckets) {
		t.Error("repeated builds over unchanged content differ")
	}
}

func TestBuildUsageIndexReportsCycles(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	rec := &recorder{}
	svc, _ := newService(t, Config{Metrics: m, Tracker: rec},
		content.Item{ID: 1, ContentType: content.TypePage, Title: "Loop", Body: `<!-- wp:block {"ref":5} /-->`},
		content.Item{ID: 2, ContentType: content.TypePage, Title: "Fine", Body: `<!-- wp:list /-->`},
		content.Item{ID: 5, ContentType: content.TypeFragment, Body: `<!-- wp:block {"ref":6} /-->`},
		content.Item{ID: 6, ContentType: content.TypeFragment, Body: `<!-- wp:block {"ref":5} /-->`},
	)

	idx, err := svc.BuildUsageIndex(context.Background(), nil)
	if err != nil {
		t.Fatalf("cycles must not fail the whole build: %v", err)
	}
	if len(idx.Cycles) != 1 || idx.Cycles[0].ItemID != 1 {
		t.Fatalf("expected item 1 reported, got %+v", idx.Cycles)
	}
	if !reflect.DeepEqual(idx.Cycles[0].Chain, []content.ItemID{1, 5, 6, 5}) {
		t.Errorf("unexpected chain %v", idx.Cycles[0].Chain)
	}
	if got := idx.BlockTypes(); !reflect.DeepEqual(got, []string{"core/list"}) {
		t.Errorf("cyclic item must be excluded, got %v", got)
	}
	if n := testutil.ToFloat64(m.BuildsTotal.WithLabelValues("usage_index", "ok")); n != 1 {
		t.Errorf("expected one successful build, got %v", n)
	}
	if types := rec.types(); len(types) != 1 || types[0] != activity.ScanUsageIndex {
		t.Errorf("unexpected events %v", types)
	}
	if rec.events[0].Cycles != 1 || rec.events[0].Items != 2 {
		t.Errorf("unexpected event %+v", rec.events[0])
	}
}

func TestChunkConcatenationCoversIndex(t *testing.T) {
	idx := newUsageIndex()
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		idx.add(name, content.Ref{ID: 1})
	}

	var seen []string
	offset, limit := 0, 3
	for {
		res := Chunk(idx, offset, limit)
		if res.Total != 7 {
			t.Fatalf("total = %d", res.Total)
		}
		for _, b := range res.Buckets {
			seen = append(seen, b.BlockType)
		}
		if res.Loaded != len(seen) {
			t.Errorf("loaded = %d, want %d", res.Loaded, len(seen))
		}
		if !res.HasMore {
			break
		}
		offset += limit
	}
	if !reflect.DeepEqual(seen, idx.BlockTypes()) {
		t.Errorf("chunks reproduced %v", seen)
	}
}

func TestChunkClampsInput(t *testing.T) {
	idx := newUsageIndex()
	for i := 0; i < 12; i++ {
		idx.add(string(rune('a'+i)), content.Ref{ID: 1})
	}
	res := Chunk(idx, -5, 0)
	if len(res.Buckets) != DefaultChunkSize || !res.HasMore || res.Loaded != 10 {
		t.Errorf("unexpected default window %+v", res)
	}
	res = Chunk(idx, 50, 10)
	if len(res.Buckets) != 0 || res.HasMore || res.Loaded != 12 {
		t.Errorf("unexpected window past end %+v", res)
	}
}

func TestTextualMatcher(t *testing.T) {
	m := TextualMatcher{}
	tests := []struct {
		body string
		want bool
	}{
		{`<!-- wp:block {"ref":12} /-->`, true},
		{`<!-- wp:block {"ref":"12"} /-->`, true},
		{`<!-- wp:block {"ref":123} /-->`, true},
		{`<!-- wp:block {"ref": 12} /-->`, false},
		{`<!-- wp:paragraph /-->`, false},
	}
	for _, tt := range tests {
		if got := m.Matches(tt.body, 12); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestStructuralMatcher(t *testing.T) {
	m := StructuralMatcher{}
	if !m.Matches(`<!-- wp:group --><!-- wp:block {"ref": 12} /--><!-- /wp:group -->`, 12) {
		t.Error("expected nested spaced ref to match")
	}
	if m.Matches(`<!-- wp:block {"ref":123} /-->`, 12) {
		t.Error("123 must not match 12")
	}
	if _, err := NewMatcher("fuzzy"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestBuildReferenceIndex(t *testing.T) {
	items := append(sampleSite(),
		content.Item{ID: 4, ContentType: content.TypePage, Title: "Quoted", Body: `<!-- wp:block {"ref":"10"} /-->`},
		content.Item{ID: 5, ContentType: content.TypePage, Title: "Lookalike", Body: `<!-- wp:block {"ref":101} /-->`},
	)
	ctx := context.Background()

	svc, _ := newService(t, Config{}, items...)
	refs, err := svc.BuildReferenceIndex(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	var ids []content.ItemID
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	if want := []content.ItemID{2, 4, 5}; !reflect.DeepEqual(ids, want) {
		t.Errorf("textual refs = %v, want %v", ids, want)
	}

	svc, _ = newService(t, Config{ReferenceMatching: MatchStructural}, items...)
	refs, err = svc.BuildReferenceIndex(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	ids = ids[:0]
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	if want := []content.ItemID{2, 4}; !reflect.DeepEqual(ids, want) {
		t.Errorf("structural refs = %v, want %v", ids, want)
	}
}

func TestReusableFragments(t *testing.T) {
	items := append(sampleSite(),
		content.Item{ID: 11, ContentType: content.TypeFragment, Title: "Unused", Body: `<!-- wp:spacer /-->`},
	)
	svc, _ := newService(t, Config{}, items...)

	frags, err := svc.ReusableFragments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %+v", frags)
	}
	if frags[0].ID != 10 || len(frags[0].Usage) != 1 || frags[0].Usage[0].ID != 2 {
		t.Errorf("unexpected footer usage %+v", frags[0])
	}
	if frags[1].Usage == nil || len(frags[1].Usage) != 0 {
		t.Errorf("unused fragment should have an empty list, got %+v", frags[1].Usage)
	}
	if frags[0].EditURL != "https://example.test/wp-admin/post.php?post=10&action=edit" {
		t.Errorf("unexpected edit link %q", frags[0].EditURL)
	}
}

func TestExport(t *testing.T) {
	svc, _ := newService(t, Config{}, sampleSite()...)
	svc.SetClock(func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) })

	res, err := svc.ExportUsage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Filename != "blocks-usage-2024-03-09-140507.csv" {
		t.Errorf("filename = %q", res.Filename)
	}
	records, err := csv.NewReader(strings.NewReader(res.CSV)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(records[0], ExportHeader) {
		t.Errorf("header = %v", records[0])
	}
	if len(records) != 6 {
		t.Fatalf("expected header plus 5 rows, got %d", len(records))
	}
	if want := []string{"core/paragraph", "News", "post", "https://example.test/wp-admin/post.php?post=2&action=edit", "https://example.test/?p=2"}; !reflect.DeepEqual(records[1], want) {
		t.Errorf("first row = %v", records[1])
	}
}

func TestExportEmpty(t *testing.T) {
	svc, _ := newService(t, Config{})
	// Scenario D: no usage pairs.
	_, err := svc.ExportUsage(context.Background())
	if !errors.Is(err, apperrors.ErrEmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}
	if apperrors.Message(err) != "No blocks found to export" {
		t.Errorf("message = %q", apperrors.Message(err))
	}
}

func TestFindExamples(t *testing.T) {
	svc, _ := newService(t, Config{},
		content.Item{ID: 1, ContentType: content.TypePage, Body: `<!-- wp:group --><!-- wp:acme/hero {"title":"First"} /--><!-- /wp:group -->`},
		content.Item{ID: 2, ContentType: content.TypePage, Body: `<!-- wp:acme/hero {"title":"Second"} /-->`},
	)
	found, err := svc.FindExamples(context.Background(), []string{"acme/hero", "acme/none"})
	if err != nil {
		t.Fatal(err)
	}
	if hero := found["acme/hero"]; hero == nil || hero.Attrs["title"] != "First" {
		t.Errorf("expected first hero, got %+v", hero)
	}
	if _, ok := found["acme/none"]; ok {
		t.Error("unexpected example for missing block")
	}
}

func TestNormalizeFilters(t *testing.T) {
	got := NormalizeFilters([]string{"page, post", "", " page", "event"})
	if want := []string{"page", "post", "event"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// gatedStore blocks Body calls until release is closed.
type gatedStore struct {
	*content.MemoryStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) Body(ctx context.Context, id content.ItemID) (string, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.MemoryStore.Body(ctx, id)
}

func TestBuildUsageIndexCallerCancelDoesNotFailOthers(t *testing.T) {
	mem := content.NewMemoryStore(nil)
	mem.Put(content.Item{ID: 1, ContentType: content.TypePage, Status: content.StatusPublish, Title: "Home", Body: `<!-- wp:paragraph /-->`})
	store := &gatedStore{MemoryStore: mem, started: make(chan struct{}), release: make(chan struct{})}
	svc, err := New(store, Config{BaseURL: "https://example.test"})
	if err != nil {
		t.Fatal(err)
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.BuildUsageIndex(ctxA, nil)
		errA <- err
	}()
	<-store.started

	type result struct {
		idx *UsageIndex
		err error
	}
	resB := make(chan result, 1)
	go func() {
		idx, err := svc.BuildUsageIndex(context.Background(), nil)
		resB <- result{idx, err}
	}()
	// Give the second caller time to join the in-flight pass.
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller still waiting on the shared pass")
	}

	close(store.release)
	select {
	case res := <-resB:
		if res.err != nil {
			t.Fatalf("live caller failed: %v", res.err)
		}
		if _, ok := res.idx.Lookup("core/paragraph"); !ok || res.idx.Items != 1 {
			t.Errorf("unexpected index %+v", res.idx)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("live caller never received the index")
	}
}
