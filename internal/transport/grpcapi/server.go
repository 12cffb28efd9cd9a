// Package grpcapi отдаёт сетку доступности по gRPC (только чтение).
package grpcapi

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/court-reservation/internal/auth"
	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/service"
)

const (
	ServiceName  = "courts.v1.AvailabilityService"
	getDayMethod = "/" + ServiceName + "/GetDay"
	authMetadata = "authorization"
	bearerPrefix = "Bearer "
)

// AvailabilityServer отдаёт сетку дня. Запрос и ответ: structpb.Struct,
// поэтому сервис обходится без кодогенерации.
type AvailabilityServer interface {
	GetDay(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var availabilityDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDay", Handler: getDayHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "courts/v1/availability.proto",
}

func getDayHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).GetDay(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getDayMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).GetDay(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GetDay: клиентский вызов для тех, у кого нет сгенерированного стаба.
func GetDay(ctx context.Context, cc grpc.ClientConnInterface, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, getDayMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type Server struct {
	booking *service.BookingService
	issuer  *auth.Issuer
}

func NewServer(booking *service.BookingService, issuer *auth.Issuer) *Server {
	return &Server{booking: booking, issuer: issuer}
}

// NewGRPCServer регистрирует сервис доступности, health и reflection.
func NewGRPCServer(srv AvailabilityServer) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor))
	s.RegisterService(&availabilityDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s, hs
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		log.Printf("[grpc] %s failed in %s: %v", info.FullMethod, time.Since(start), err)
	}
	return resp, err
}

// GetDay ожидает {"date": "YYYY-MM-DD"} и bearer-токен в metadata.
func (s *Server) GetDay(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	date := in.GetFields()["date"].GetStringValue()
	day, err := calendar.ParseDay(date)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.booking.Day(ctx, actor, day)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

func (s *Server) authenticate(ctx context.Context) (calendar.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(authMetadata)
	if len(values) == 0 || !strings.HasPrefix(values[0], bearerPrefix) {
		return calendar.Actor{}, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	claims, err := s.issuer.ParseValidate(strings.TrimPrefix(values[0], bearerPrefix))
	if err != nil {
		return calendar.Actor{}, status.Error(codes.Unauthenticated, auth.ErrInvalidToken.Error())
	}
	actor, err := s.booking.Authenticate(ctx, claims.Sub)
	if err != nil {
		return calendar.Actor{}, toStatus(err)
	}
	return actor, nil
}

// toStruct переводит ответ в structpb через его JSON-представление.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "decode response: %v", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build struct: %v", err)
	}
	return st, nil
}

func toStatus(err error) error {
	switch calendar.Kind(err) {
	case calendar.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case calendar.KindPermission:
		return status.Error(codes.PermissionDenied, err.Error())
	case calendar.KindQuota:
		return status.Error(codes.ResourceExhausted, err.Error())
	case calendar.KindConflict:
		return status.Error(codes.Aborted, err.Error())
	case calendar.KindTransport:
		return status.Error(codes.Unavailable, err.Error())
	case calendar.KindNotice:
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
