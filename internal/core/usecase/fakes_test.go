package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	createErr   error
	statusErr   error
	statusCalls []statusCall
	analyzed    map[string]int
}

func newDocRepoFake(docs ...*domain.Document) *docRepoFake {
	f := &docRepoFake{docs: map[string]*domain.Document{}, analyzed: map[string]int{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return f.statusErr
}

func (f *docRepoFake) MarkAnalyzed(_ context.Context, id string, clauseCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: domain.StatusReady})
	f.analyzed[id] = clauseCount
	return nil
}

type clauseRepoFake struct {
	mu      sync.Mutex
	clauses map[string][]domain.Clause
	saveErr error
}

func newClauseRepoFake() *clauseRepoFake {
	return &clauseRepoFake{clauses: map[string][]domain.Clause{}}
}

func (f *clauseRepoFake) SaveClauses(_ context.Context, documentID string, clauses []domain.Clause) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clauses[documentID] = append([]domain.Clause(nil), clauses...)
	return nil
}

func (f *clauseRepoFake) ListClauses(_ context.Context, documentID string) ([]domain.Clause, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Clause(nil), f.clauses[documentID]...), nil
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type queueFake struct {
	documentID string
	err        error
}

func (f *queueFake) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *queueFake) SubscribeDocumentUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	text  string
	err   error
	block chan struct{}
}

func (f *extractorFake) Extract(ctx context.Context, _ *domain.Document) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// embedderFake maps each text to a one-hot vector keyed by its first word.
type embedderFake struct {
	calls    int
	queries  int
	err      error
	queryErr error
}

func (f *embedderFake) vector(text string) []float32 {
	v := make([]float32, 8)
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return v
	}
	v[int(fields[0][0])%len(v)] = 1
	return v
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.vector(text), nil
}

type vectorStoreFake struct {
	mu          sync.Mutex
	collections map[string]map[string]domain.VectorRecord
	order       map[string][]string
	deleteErr   error
	upsertErr   error
	ops         []string
}

func newVectorStoreFake() *vectorStoreFake {
	return &vectorStoreFake{
		collections: map[string]map[string]domain.VectorRecord{},
		order:       map[string][]string{},
	}
}

func (f *vectorStoreFake) Upsert(_ context.Context, collection string, records []domain.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "upsert")
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.collections[collection] == nil {
		f.collections[collection] = map[string]domain.VectorRecord{}
	}
	for _, r := range records {
		if _, exists := f.collections[collection][r.ID]; exists {
			return fmt.Errorf("duplicate id %s", r.ID)
		}
		f.collections[collection][r.ID] = r
		f.order[collection] = append(f.order[collection], r.ID)
	}
	return nil
}

func (f *vectorStoreFake) Delete(_ context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, id := range ids {
		delete(f.collections[collection], id)
		kept := f.order[collection][:0]
		for _, existing := range f.order[collection] {
			if existing != id {
				kept = append(kept, existing)
			}
		}
		f.order[collection] = kept
	}
	return nil
}

func (f *vectorStoreFake) DeleteExcept(_ context.Context, collection string, keep []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "prune")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}
	kept := f.order[collection][:0]
	for _, id := range f.order[collection] {
		if _, ok := wanted[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(f.collections[collection], id)
	}
	f.order[collection] = kept
	return nil
}

func (f *vectorStoreFake) Query(_ context.Context, collection string, vector []float32, topK int) ([]domain.EvidenceHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, ok := f.collections[collection]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotIndexed, "fake.query", fmt.Errorf("collection %s", collection))
	}
	hits := make([]domain.EvidenceHit, 0, len(records))
	for _, id := range f.order[collection] {
		r := records[id]
		d := 1 - cosine(vector, r.Vector)
		hits = append(hits, domain.EvidenceHit{ClauseID: r.Metadata[domain.MetadataClauseID], Text: r.Document, Metadata: r.Metadata, Distance: &d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return *hits[i].Distance < *hits[j].Distance })
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *vectorStoreFake) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collection])
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type generatorFake struct {
	reply    string
	err      error
	requests []domain.ChatRequest
}

func (f *generatorFake) Complete(_ context.Context, req domain.ChatRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type scannerFake struct{}

func (scannerFake) Scan(clauses []domain.Clause) []domain.RiskFlag {
	flags := make([]domain.RiskFlag, 0)
	for _, c := range clauses {
		if strings.Contains(strings.ToLower(c.Text), "unlimited") {
			flags = append(flags, domain.RiskFlag{ClauseID: c.ID, Tag: domain.TagUnlimitedLiability})
		}
	}
	return flags
}

type segmenterFake struct{}

func (segmenterFake) Segment(text string) []domain.Clause {
	out := make([]domain.Clause, 0)
	for _, part := range strings.Split(text, "\n\n") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, domain.Clause{ID: fmt.Sprintf("c%d", len(out)+1), Text: part})
		}
	}
	return out
}
