package handlers

import (
	"context"
	"testing"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/config"
	"github.com/nichesite/directory/internal/services"
	"github.com/nichesite/directory/internal/services/authorization"
)

// Bearer tokens accepted by newTestGuard
const (
	adminToken       = "admin-token"
	editorToken      = "editor-token"
	subscriberToken  = "subscriber-token"
	adminAuthHeader  = "Bearer " + adminToken
	editorAuthHeader = "Bearer " + editorToken
)

// Mock RelationshipService
type mockRelationshipService struct {
	upsertRelationshipFunc func(ctx context.Context, rel *entities.Relationship) error
	reconcileFunc          func(ctx context.Context) (*services.ReconcileResult, error)
	reportFunc             func(ctx context.Context) ([]*services.ReportRow, error)
	listFunc               func(ctx context.Context) ([]*entities.Relationship, error)

	upserted []*entities.Relationship
}

func (m *mockRelationshipService) UpsertRelationship(ctx context.Context, rel *entities.Relationship) error {
	m.upserted = append(m.upserted, rel)
	if m.upsertRelationshipFunc != nil {
		return m.upsertRelationshipFunc(ctx, rel)
	}
	return nil
}

func (m *mockRelationshipService) Reconcile(ctx context.Context) (*services.ReconcileResult, error) {
	if m.reconcileFunc != nil {
		return m.reconcileFunc(ctx)
	}
	return &services.ReconcileResult{}, nil
}

func (m *mockRelationshipService) Report(ctx context.Context) ([]*services.ReportRow, error) {
	if m.reportFunc != nil {
		return m.reportFunc(ctx)
	}
	return nil, nil
}

func (m *mockRelationshipService) List(ctx context.Context) ([]*entities.Relationship, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

// Mock RecordService
type mockRecordService struct {
	createFunc func(ctx context.Context, rec *entities.Record, autosave bool) (*entities.Record, error)
	saveFunc   func(ctx context.Context, rec *entities.Record, autosave bool) (*entities.Record, error)
	getFunc    func(ctx context.Context, id int64) (*entities.Record, error)
}

func (m *mockRecordService) Create(ctx context.Context, rec *entities.Record, autosave bool) (*entities.Record, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, rec, autosave)
	}
	rec.ID = 1
	return rec, nil
}

func (m *mockRecordService) Save(ctx context.Context, rec *entities.Record, autosave bool) (*entities.Record, error) {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, rec, autosave)
	}
	return rec, nil
}

func (m *mockRecordService) Get(ctx context.Context, id int64) (*entities.Record, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &entities.Record{ID: id, PostType: entities.PostTypeCompany}, nil
}

// Mock HealthChecker
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.err
}

// newTestGuard returns a Guard with one administrator, one editor and one
// subscriber token and the default capability rules.
func newTestGuard(t *testing.T) *authorization.Guard {
	t.Helper()

	policy, err := authorization.NewPolicy(map[string]string{
		entities.CapabilityEditPosts:     `subject.role in ["administrator", "editor", "author", "contributor"]`,
		entities.CapabilityManageOptions: `subject.role == "administrator"`,
	})
	if err != nil {
		t.Fatalf("failed to create policy: %v", err)
	}

	return authorization.NewGuard(authorization.NewAuthenticator([]config.APIToken{
		{Token: adminToken, Login: "admin", Role: entities.RoleAdministrator},
		{Token: editorToken, Login: "editor", Role: entities.RoleEditor},
		{Token: subscriberToken, Login: "reader", Role: entities.RoleSubscriber},
	}), policy)
}
