package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/handlers"
	"github.com/nichesite/directory/internal/infrastructure/config"
	"github.com/nichesite/directory/internal/infrastructure/database"
	"github.com/nichesite/directory/internal/repositories"
	"github.com/nichesite/directory/internal/repositories/relational"
	"github.com/nichesite/directory/internal/services"
	"github.com/nichesite/directory/internal/services/authorization"
	"github.com/nichesite/directory/pkg/cache/memorycache"
)

const bufSize = 1024 * 1024

// Bearer headers accepted by the test server
const (
	AdminAuth      = "Bearer e2e-admin"
	EditorAuth     = "Bearer e2e-editor"
	SubscriberAuth = "Bearer e2e-subscriber"
)

// EditURLPattern is the record edit link template used by the test server
const EditURLPattern = "/wp-admin/post.php?post=%d&action=edit"

// E2ETestServer wires the full stack against a migrated SQLite database
type E2ETestServer struct {
	Echo          *echo.Echo
	GRPCClient    *handlers.RelationshipServiceClient
	DB            *database.DB
	Relationships repositories.RelationshipRepository
	Records       repositories.RecordRepository
	Service       *services.RelationshipService
}

// SetupE2ETest builds a server backed by a fresh database. Everything is
// torn down when the test finishes.
func SetupE2ETest(t *testing.T) *E2ETestServer {
	t.Helper()

	db := relational.SetupTestDB(t)

	policy, err := authorization.NewPolicy(map[string]string{
		entities.CapabilityEditPosts:     `subject.role in ["administrator", "editor", "author", "contributor"]`,
		entities.CapabilityManageOptions: `subject.role == "administrator"`,
	})
	if err != nil {
		t.Fatalf("failed to create policy: %v", err)
	}
	guard := authorization.NewGuard(authorization.NewAuthenticator([]config.APIToken{
		{Token: "e2e-admin", Login: "admin", Role: entities.RoleAdministrator},
		{Token: "e2e-editor", Login: "editor", Role: entities.RoleEditor},
		{Token: "e2e-subscriber", Login: "reader", Role: entities.RoleSubscriber},
	}), policy)

	nameCache, err := memorycache.New(&memorycache.Config{MaxSizeBytes: 1 << 20, DefaultTTL: time.Minute})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { nameCache.Close() })

	relationshipRepo := relational.NewSQLRelationshipRepository(db)
	recordRepo := relational.NewSQLRecordRepository(db)

	names := services.NewNameResolver(recordRepo, nameCache, time.Minute, nil)
	relationshipService := services.NewRelationshipService(services.RelationshipServiceConfig{
		Relationships: relationshipRepo,
		Records:       recordRepo,
		Names:         names,
		EditURL:       EditURLPattern,
	})

	dispatcher := services.NewDispatcher(nil)
	dispatcher.Subscribe("names", names.HandleRecordSaved)
	dispatcher.Subscribe("relationships", relationshipService.HandleRecordSaved)
	recordService := services.NewRecordService(recordRepo, dispatcher)

	e := handlers.NewEcho(&handlers.Handlers{
		Relationships: handlers.NewRelationshipHandler(relationshipService, nil),
		Records:       handlers.NewRecordHandler(recordService, nil),
		Admin:         handlers.NewAdminHandler(relationshipService, nil),
		Map:           handlers.NewMapHandler(recordService, ""),
		Health:        handlers.NewHealthHandler(db),
	}, handlers.ServerOptions{Guard: guard})

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer(grpc.UnaryInterceptor(handlers.AuthUnaryInterceptor(guard, handlers.MethodCapabilities)))
	handlers.RegisterRelationshipServiceServer(server, handlers.NewRelationshipGRPCHandler(relationshipService, nil))
	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	conn, err := grpc.NewClient(
		"passthrough://bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to create client connection: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		server.Stop()
		listener.Close()
	})

	return &E2ETestServer{
		Echo:          e,
		GRPCClient:    handlers.NewRelationshipServiceClient(conn),
		DB:            db,
		Relationships: relationshipRepo,
		Records:       recordRepo,
		Service:       relationshipService,
	}
}

// Do sends an HTTP request through the router
func (s *E2ETestServer) Do(method, target, auth, contentType, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// SaveRecord creates (id 0) or saves a record over HTTP and returns it
func (s *E2ETestServer) SaveRecord(t *testing.T, id int64, body map[string]interface{}) *entities.Record {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode record: %v", err)
	}

	method, target, want := http.MethodPost, handlers.APIPrefix+"/records", http.StatusCreated
	if id > 0 {
		method, want = http.MethodPut, http.StatusOK
		target = handlers.APIPrefix + "/records/" + strconv.FormatInt(id, 10)
	}

	rec := s.Do(method, target, EditorAuth, echo.MIMEApplicationJSON, string(raw))
	if rec.Code != want {
		t.Fatalf("record save returned %d: %s", rec.Code, rec.Body.String())
	}

	var saved entities.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	return &saved
}

// GetRelationship reads one row straight from the store
func (s *E2ETestServer) GetRelationship(t *testing.T, companyPostID, headingPostID int64) *entities.Relationship {
	t.Helper()

	rel, err := s.Relationships.Get(context.Background(), entities.Pair{CompanyPostID: companyPostID, HeadingPostID: headingPostID})
	if err != nil {
		t.Fatalf("failed to read relationship %d:%d: %v", companyPostID, headingPostID, err)
	}
	return rel
}

// CountRelationships returns the number of stored rows
func (s *E2ETestServer) CountRelationships(t *testing.T) int64 {
	t.Helper()

	n, err := s.Relationships.Count(context.Background())
	if err != nil {
		t.Fatalf("failed to count relationships: %v", err)
	}
	return n
}

// WithAuth attaches a bearer header to an outgoing gRPC context
func WithAuth(ctx context.Context, auth string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", auth)
}
