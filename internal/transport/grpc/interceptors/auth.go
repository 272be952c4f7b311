package interceptors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/policy"
	"github.com/Faik442/dotnetblueprints/internal/usecase"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

// AccessValidator turns a raw bearer token into the caller identity.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, raw string) (*domain.Identity, error)
}

// PermissionAuthorizer decides whether identity holds every required key.
type PermissionAuthorizer interface {
	Authorize(ctx context.Context, identity *domain.Identity, required []string) error
}

// AuthorizationOptions fine-tunes interceptor behaviour.
type AuthorizationOptions struct {
	// Methods maps full gRPC method names to registered operation ids.
	Methods map[string]string
	// PublicMethods skip authentication entirely.
	PublicMethods []string
	Logger        *zap.Logger
}

// AuthorizationInterceptor authenticates callers and enforces the operation
// requirement bound to each method. Methods that are neither public nor
// mapped are denied.
type AuthorizationInterceptor struct {
	validator  AccessValidator
	authorizer PermissionAuthorizer
	methods    map[string][]string
	public     map[string]struct{}
	logger     *zap.Logger
}

// NewAuthorizationInterceptor resolves every mapped operation against the
// registry. An operation missing from the registry is a wiring error.
func NewAuthorizationInterceptor(validator AccessValidator, authorizer PermissionAuthorizer, registry *policy.Registry, opts AuthorizationOptions) (*AuthorizationInterceptor, error) {
	if validator == nil || authorizer == nil {
		return nil, errors.New("grpc auth: validator and authorizer are required")
	}

	methods := make(map[string][]string, len(opts.Methods))
	for method, op := range opts.Methods {
		if registry == nil {
			return nil, fmt.Errorf("grpc auth: no registry for method %s", method)
		}
		keys, ok := registry.Requirement(op)
		if !ok {
			return nil, fmt.Errorf("grpc auth: method %s bound to unregistered operation %q", method, op)
		}
		methods[method] = keys
	}

	public := make(map[string]struct{}, len(opts.PublicMethods))
	for _, method := range opts.PublicMethods {
		if method = strings.TrimSpace(method); method != "" {
			public[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthorizationInterceptor{
		validator:  validator,
		authorizer: authorizer,
		methods:    methods,
		public:     public,
		logger:     logger,
	}, nil
}

// Unary returns the unary server interceptor.
func (ai *AuthorizationInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := ai.enforce(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream returns the stream server interceptor.
func (ai *AuthorizationInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := ai.enforce(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
	}
}

func (ai *AuthorizationInterceptor) enforce(ctx context.Context, method string) (context.Context, error) {
	if _, ok := ai.public[method]; ok {
		return ctx, nil
	}

	required, ok := ai.methods[method]
	if !ok {
		ai.logger.Warn("gRPC method has no registered operation", zap.String("method", method))
		return ctx, status.Error(codes.PermissionDenied, "forbidden")
	}

	token, err := tokenFromMetadata(ctx)
	if err != nil {
		ai.logger.Debug("gRPC authentication failed", zap.String("method", method), zap.Error(err))
		return ctx, status.Error(codes.Unauthenticated, "unauthorized")
	}

	identity, err := ai.validator.ValidateAccess(ctx, token)
	if err != nil {
		if !errors.Is(err, usecase.ErrUnauthenticated) {
			ai.logger.Error("gRPC token validation failed", zap.String("method", method), zap.Error(err))
			return ctx, status.Error(codes.Internal, "internal error")
		}
		return ctx, status.Error(codes.Unauthenticated, "unauthorized")
	}

	if err := ai.authorizer.Authorize(ctx, identity, required); err != nil {
		switch {
		case errors.Is(err, usecase.ErrUnauthenticated):
			return ctx, status.Error(codes.Unauthenticated, "unauthorized")
		case errors.Is(err, usecase.ErrForbidden):
			ai.logger.Info("gRPC call denied",
				zap.String("method", method),
				zap.String("user_id", identity.UserID),
				zap.String("company_id", identity.CompanyID),
			)
			return ctx, status.Error(codes.PermissionDenied, "forbidden")
		default:
			ai.logger.Error("gRPC authorization failed", zap.String("method", method), zap.Error(err))
			return ctx, status.Error(codes.Internal, "internal error")
		}
	}

	return WithIdentity(ctx, identity), nil
}

type identityContextKey struct{}

// WithIdentity returns a derived context carrying the caller identity.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the caller identity stored by the interceptor.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(*domain.Identity)
	return identity, ok && identity != nil
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context {
	return s.ctx
}

func tokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errors.New("authorization token required")
	}

	value := strings.TrimSpace(values[0])
	if len(value) < len(bearerPrefix) || !strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("authorization token required")
	}

	return token, nil
}
