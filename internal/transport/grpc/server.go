package transportgrpc

import (
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Faik442/dotnetblueprints/internal/core/policy"
	grpcinterceptors "github.com/Faik442/dotnetblueprints/internal/transport/grpc/interceptors"
)

// Health check methods never require a credential.
var healthMethods = []string{
	healthpb.Health_Check_FullMethodName,
	healthpb.Health_Watch_FullMethodName,
}

var reflectionMethods = []string{
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo",
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo",
}

// ServerDependencies encapsulates what the gRPC server layer needs.
type ServerDependencies struct {
	Validator  grpcinterceptors.AccessValidator
	Authorizer grpcinterceptors.PermissionAuthorizer
	Registry   *policy.Registry
	// Methods binds full method names to registered operation ids.
	Methods map[string]string
	// Authorization is served when set. Its methods need entries in Methods.
	Authorization    *AuthorizationServer
	Metrics          *grpcinterceptors.GRPCMetrics
	Tracing          grpcinterceptors.TracingOptions
	EnableReflection bool
	Logger           *zap.Logger
}

// Server bundles the gRPC server with its health registry.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer wires the health and authorization services behind the metrics,
// tracing and authorization interceptors.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Validator == nil || deps.Authorizer == nil {
		return nil, errors.New("grpc: validator and authorizer are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	public := append([]string(nil), healthMethods...)
	if deps.EnableReflection {
		public = append(public, reflectionMethods...)
	}

	authz, err := grpcinterceptors.NewAuthorizationInterceptor(deps.Validator, deps.Authorizer, deps.Registry, grpcinterceptors.AuthorizationOptions{
		Methods:       deps.Methods,
		PublicMethods: public,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(
		grpcinterceptors.TracingServerOption(deps.Tracing),
		grpc.ChainUnaryInterceptor(deps.Metrics.UnaryServerInterceptor(), authz.Unary()),
		grpc.ChainStreamInterceptor(deps.Metrics.StreamServerInterceptor(), authz.Stream()),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	if deps.Authorization != nil {
		deps.Authorization.register(server)
		healthServer.SetServingStatus(AuthorizationServiceName, healthpb.HealthCheckResponse_SERVING)
	}

	if deps.EnableReflection {
		reflection.Register(server)
	}

	return &Server{Server: server, Health: healthServer}, nil
}

// Shutdown flips every service to NOT_SERVING and drains in-flight calls.
func (s *Server) Shutdown() {
	if s == nil {
		return
	}
	s.Health.Shutdown()
	s.GracefulStop()
}
