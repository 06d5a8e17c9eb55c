package handlers

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/services"
	"github.com/nichesite/directory/internal/services/authorization"
)

// gRPC names of the relationship service
const (
	RelationshipServiceName  = "nichesitedirectory.v1.RelationshipService"
	UpdateRelationshipMethod = "/" + RelationshipServiceName + "/UpdateRelationship"
)

// RelationshipServiceServer is the server API of the relationship service.
// Requests and responses are google.protobuf.Struct values carrying the same
// fields as the REST endpoint.
type RelationshipServiceServer interface {
	UpdateRelationship(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RelationshipServiceDesc describes the relationship service for grpc.Server
var RelationshipServiceDesc = grpc.ServiceDesc{
	ServiceName: RelationshipServiceName,
	HandlerType: (*RelationshipServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "UpdateRelationship",
			Handler:    updateRelationshipHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nichesitedirectory/v1/relationship.proto",
}

// RegisterRelationshipServiceServer registers srv on s
func RegisterRelationshipServiceServer(s grpc.ServiceRegistrar, srv RelationshipServiceServer) {
	s.RegisterService(&RelationshipServiceDesc, srv)
}

func updateRelationshipHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelationshipServiceServer).UpdateRelationship(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: UpdateRelationshipMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelationshipServiceServer).UpdateRelationship(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RelationshipServiceClient calls the relationship service
type RelationshipServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRelationshipServiceClient creates a new RelationshipServiceClient
func NewRelationshipServiceClient(cc grpc.ClientConnInterface) *RelationshipServiceClient {
	return &RelationshipServiceClient{cc: cc}
}

// UpdateRelationship upserts one relationship
func (c *RelationshipServiceClient) UpdateRelationship(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, UpdateRelationshipMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RelationshipGRPCHandler handles relationship service gRPC requests
type RelationshipGRPCHandler struct {
	service services.RelationshipServiceInterface
	logger  *zap.Logger
}

// NewRelationshipGRPCHandler creates a new RelationshipGRPCHandler
func NewRelationshipGRPCHandler(service services.RelationshipServiceInterface, logger *zap.Logger) *RelationshipGRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipGRPCHandler{service: service, logger: logger}
}

// UpdateRelationship handles the UpdateRelationship RPC
func (h *RelationshipGRPCHandler) UpdateRelationship(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	params := requestParams{}
	if req != nil {
		for name, value := range req.AsMap() {
			params[name] = value
		}
	}

	rel := relationshipFromParams(params)
	if err := h.service.UpsertRelationship(ctx, rel); err != nil {
		apiErr := relationshipWriteError(err)
		logging.WithContext(ctx, h.logger).Error("failed to update relationship",
			zap.String("code", apiErr.Code),
			zap.Error(err),
		)
		return nil, status.Errorf(codes.Internal, "%s: %s", apiErr.Code, apiErr.Message)
	}

	resp, err := structpb.NewStruct(map[string]interface{}{
		"message": msgRelationshipUpdated,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build response: %v", err)
	}
	return resp, nil
}

// MethodCapabilities maps full gRPC method names to the capability they require
var MethodCapabilities = map[string]string{
	UpdateRelationshipMethod: entities.CapabilityEditPosts,
}

// AuthUnaryInterceptor authenticates the "authorization" metadata value and
// checks the capability of methods listed in capabilities. Unlisted methods
// pass through.
func AuthUnaryInterceptor(guard *authorization.Guard, capabilities map[string]string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		capability, ok := capabilities[info.FullMethod]
		if !ok {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		subject, err := guard.Authorize(ctx, header, capability)
		if err != nil {
			if errors.Is(err, authorization.ErrUnauthenticated) {
				return nil, status.Error(codes.Unauthenticated, CodeForbidden+": "+msgForbidden)
			}
			return nil, status.Error(codes.PermissionDenied, CodeForbidden+": "+msgForbidden)
		}

		return handler(logging.SetLogin(ctx, subject.Login), req)
	}
}
