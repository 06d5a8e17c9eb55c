package services

import (
	"context"
	"sync"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/messaging"
	"github.com/nichesite/directory/internal/repositories"
)

// Mock RelationshipRepository
type mockRelationshipRepository struct {
	upsertFunc   func(ctx context.Context, rel *entities.Relationship) error
	syncPairFunc func(ctx context.Context, rel *entities.Relationship) error
	listFunc     func(ctx context.Context) ([]*entities.Relationship, error)

	mu     sync.Mutex
	synced []*entities.Relationship
}

func (m *mockRelationshipRepository) Upsert(ctx context.Context, rel *entities.Relationship) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, rel)
	}
	return nil
}

func (m *mockRelationshipRepository) SyncPair(ctx context.Context, rel *entities.Relationship) error {
	m.mu.Lock()
	copied := *rel
	m.synced = append(m.synced, &copied)
	m.mu.Unlock()
	if m.syncPairFunc != nil {
		return m.syncPairFunc(ctx, rel)
	}
	return nil
}

func (m *mockRelationshipRepository) Get(ctx context.Context, pair entities.Pair) (*entities.Relationship, error) {
	return nil, repositories.ErrRelationshipNotFound
}

func (m *mockRelationshipRepository) List(ctx context.Context) ([]*entities.Relationship, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockRelationshipRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

// In-memory RecordRepository
type fakeRecordRepository struct {
	mu            sync.Mutex
	records       map[int64]*entities.Record
	nextID        int64
	getFieldCalls int
	getFieldErr   error
	listErr       error
}

func newFakeRecordRepository(recs ...*entities.Record) *fakeRecordRepository {
	f := &fakeRecordRepository{records: make(map[int64]*entities.Record)}
	for _, rec := range recs {
		f.records[rec.ID] = rec
		if rec.ID > f.nextID {
			f.nextID = rec.ID
		}
	}
	return f
}

func (f *fakeRecordRepository) Create(ctx context.Context, rec *entities.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec.ID = f.nextID
	copied := *rec
	copied.Fields = copyFields(rec.Fields)
	f.records[rec.ID] = &copied
	return nil
}

func (f *fakeRecordRepository) Update(ctx context.Context, rec *entities.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.records[rec.ID]
	if !ok {
		return repositories.ErrRecordNotFound
	}
	fields := copyFields(existing.Fields)
	for k, v := range rec.Fields {
		fields[k] = v
	}
	copied := *rec
	copied.Fields = fields
	f.records[rec.ID] = &copied
	return nil
}

func (f *fakeRecordRepository) Get(ctx context.Context, id int64) (*entities.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	copied := *rec
	copied.Fields = copyFields(rec.Fields)
	return &copied, nil
}

func (f *fakeRecordRepository) ListByType(ctx context.Context, postType string) ([]*entities.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*entities.Record
	for id := int64(1); id <= f.nextID; id++ {
		if rec, ok := f.records[id]; ok && rec.PostType == postType {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRecordRepository) GetField(ctx context.Context, recordID int64, name string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getFieldCalls++
	if f.getFieldErr != nil {
		return nil, f.getFieldErr
	}
	rec, ok := f.records[recordID]
	if !ok {
		return nil, nil
	}
	return rec.Fields[name], nil
}

func copyFields(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Mock Publisher
type mockPublisher struct {
	mu     sync.Mutex
	events []*messaging.RelationshipEvent
	err    error
}

func (m *mockPublisher) PublishRelationshipEvent(ctx context.Context, event *messaging.RelationshipEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockPublisher) Close() error {
	return nil
}

// Mock WriteRecorder
type mockRecorder struct {
	mu     sync.Mutex
	writes []string
}

func (m *mockRecorder) RecordRelationshipWrite(source, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, source+"/"+result)
}
