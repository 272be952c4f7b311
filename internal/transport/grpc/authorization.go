package transportgrpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	grpcinterceptors "github.com/Faik442/dotnetblueprints/internal/transport/grpc/interceptors"
	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

// AuthorizationServiceName is the registered name of the authorization service.
const AuthorizationServiceName = "authz.v1.AuthorizationService"

// Full method names of the authorization service.
const (
	CheckPermissionsMethod     = "/" + AuthorizationServiceName + "/CheckPermissions"
	EffectivePermissionsMethod = "/" + AuthorizationServiceName + "/EffectivePermissions"
	ListPermissionsMethod      = "/" + AuthorizationServiceName + "/ListPermissions"
)

// EffectivePermissionReader returns the keys the caller currently holds.
type EffectivePermissionReader interface {
	EffectivePermissions(ctx context.Context, identity *domain.Identity) ([]string, error)
}

// PermissionLister reads the permission catalog.
type PermissionLister interface {
	List(ctx context.Context) ([]domain.Permission, error)
}

// AuthorizationServer answers permission questions for other services. The
// caller identity is the one the interceptor stored on the context.
type AuthorizationServer struct {
	authorizer  grpcinterceptors.PermissionAuthorizer
	memberships EffectivePermissionReader
	catalog     PermissionLister
	logger      *zap.Logger
}

// NewAuthorizationServer constructs an AuthorizationServer.
func NewAuthorizationServer(authorizer grpcinterceptors.PermissionAuthorizer, memberships EffectivePermissionReader, catalog PermissionLister, logger *zap.Logger) *AuthorizationServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationServer{authorizer: authorizer, memberships: memberships, catalog: catalog, logger: logger}
}

// CheckPermissions reports whether the caller holds every key in req.
func (s *AuthorizationServer) CheckPermissions(ctx context.Context, req *structpb.ListValue) (*wrapperspb.BoolValue, error) {
	identity, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(req.GetValues()))
	for _, v := range req.GetValues() {
		key, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "permission keys must be strings")
		}
		keys = append(keys, key.StringValue)
	}
	if len(domain.NormalizePermissionKeys(keys)) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one permission key is required")
	}

	switch err := s.authorizer.Authorize(ctx, identity, keys); {
	case err == nil:
		return wrapperspb.Bool(true), nil
	case errors.Is(err, usecase.ErrForbidden):
		return wrapperspb.Bool(false), nil
	default:
		return nil, s.statusFor(ctx, "check permissions", err)
	}
}

// EffectivePermissions returns the keys the caller's memberships grant now.
func (s *AuthorizationServer) EffectivePermissions(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	identity, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	keys, err := s.memberships.EffectivePermissions(ctx, identity)
	if err != nil {
		return nil, s.statusFor(ctx, "effective permissions", err)
	}
	return stringList(keys), nil
}

// ListPermissions returns every catalog key.
func (s *AuthorizationServer) ListPermissions(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	perms, err := s.catalog.List(ctx)
	if err != nil {
		return nil, s.statusFor(ctx, "list permissions", err)
	}

	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}
	return stringList(keys), nil
}

func (s *AuthorizationServer) register(server *grpc.Server) {
	server.RegisterService(&authorizationServiceDesc, s)
}

func (s *AuthorizationServer) statusFor(ctx context.Context, call string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, usecase.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(ctx.Err()).Err()
	default:
		s.logger.Error("authorization service call failed", zap.String("call", call), zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func callerIdentity(ctx context.Context) (*domain.Identity, error) {
	identity, ok := grpcinterceptors.IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	return identity, nil
}

func stringList(values []string) *structpb.ListValue {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(values))}
	for _, v := range values {
		out.Values = append(out.Values, structpb.NewStringValue(v))
	}
	return out
}

type authorizationService interface {
	CheckPermissions(ctx context.Context, req *structpb.ListValue) (*wrapperspb.BoolValue, error)
	EffectivePermissions(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	ListPermissions(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
}

var authorizationServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthorizationServiceName,
	HandlerType: (*authorizationService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckPermissions",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.ListValue)
				if err := dec(in); err != nil {
					return nil, err
				}
				call := func(ctx context.Context, req any) (any, error) {
					return srv.(authorizationService).CheckPermissions(ctx, req.(*structpb.ListValue))
				}
				if interceptor == nil {
					return call(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckPermissionsMethod}, call)
			},
		},
		{
			MethodName: "EffectivePermissions",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(emptypb.Empty)
				if err := dec(in); err != nil {
					return nil, err
				}
				call := func(ctx context.Context, req any) (any, error) {
					return srv.(authorizationService).EffectivePermissions(ctx, req.(*emptypb.Empty))
				}
				if interceptor == nil {
					return call(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: EffectivePermissionsMethod}, call)
			},
		},
		{
			MethodName: "ListPermissions",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(emptypb.Empty)
				if err := dec(in); err != nil {
					return nil, err
				}
				call := func(ctx context.Context, req any) (any, error) {
					return srv.(authorizationService).ListPermissions(ctx, req.(*emptypb.Empty))
				}
				if interceptor == nil {
					return call(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: ListPermissionsMethod}, call)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authz/v1/authorization.proto",
}
