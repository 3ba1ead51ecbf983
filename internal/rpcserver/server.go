package rpcserver

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/warehoused/warehoused/internal/apperr"
	"github.com/warehoused/warehoused/internal/ingest"
)

// instrumentServer is the business-logic surface the generated stubs
// would normally describe. It's kept unexported: external callers only
// ever see the *grpc.Server this package registers it against.
type instrumentServer interface {
	RegisterProcess(ctx context.Context, req *registerProcessRequest) (*registerProcessResponse, error)
	RecordSpan(ctx context.Context, req *recordSpanRequest) (*recordSpanResponse, error)
	RecordEvent(ctx context.Context, req *recordEventRequest) (*recordEventResponse, error)
}

// Server implements the Instrument service (§6) over the ingest router.
type Server struct {
	router *ingest.Router
	logger *logrus.Logger
}

// New constructs a Server bound to router.
func New(router *ingest.Router, logger *logrus.Logger) *Server {
	return &Server{router: router, logger: logger}
}

var _ instrumentServer = (*Server)(nil)

// Register wires the Instrument service into grpcServer, matching the
// jaeger collector's `Register(*grpc.Server)` convention: one call site
// the process's gRPC bootstrap invokes once at startup.
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&serviceDesc, s)
}

func (s *Server) RegisterProcess(ctx context.Context, req *registerProcessRequest) (*registerProcessResponse, error) {
	if req.Process == nil {
		return nil, status.Error(codes.InvalidArgument, "process record is required")
	}
	proc, err := s.router.RegisterProcess(ctx, *req.Process)
	if err != nil {
		return nil, toStatus(err)
	}
	return &registerProcessResponse{ProcessID: proc.ID}, nil
}

func (s *Server) RecordSpan(_ context.Context, req *recordSpanRequest) (*recordSpanResponse, error) {
	if req.Span == nil {
		return nil, status.Error(codes.InvalidArgument, "span record is required")
	}
	s.router.RecordSpan(req.Span)
	return &recordSpanResponse{}, nil
}

func (s *Server) RecordEvent(_ context.Context, req *recordEventRequest) (*recordEventResponse, error) {
	if req.Log == nil {
		return nil, status.Error(codes.InvalidArgument, "log record is required")
	}
	if !req.Log.Level.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "invalid log level: %s", req.Log.Level)
	}
	s.router.RecordLog(req.Log)
	return &recordEventResponse{}, nil
}

// toStatus maps the §7 error-kind taxonomy onto gRPC status codes:
// BadRequest -> InvalidArgument, everything else raised at this
// boundary (mailbox closed on shutdown) -> Internal.
func toStatus(err error) error {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	switch kind {
	case apperr.KindBadRequest:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperr.KindMailboxClosed:
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "warehoused.Instrument",
	HandlerType: (*instrumentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterProcess", Handler: registerProcessHandler},
		{MethodName: "RecordSpan", Handler: recordSpanHandler},
		{MethodName: "RecordEvent", Handler: recordEventHandler},
	},
	Metadata: "internal/rpcserver/instrument.proto",
}

func registerProcessHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(registerProcessRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(instrumentServer).RegisterProcess(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/warehoused.Instrument/RegisterProcess"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(instrumentServer).RegisterProcess(ctx, req.(*registerProcessRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func recordSpanHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(recordSpanRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(instrumentServer).RecordSpan(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/warehoused.Instrument/RecordSpan"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(instrumentServer).RecordSpan(ctx, req.(*recordSpanRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func recordEventHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(recordEventRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(instrumentServer).RecordEvent(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/warehoused.Instrument/RecordEvent"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(instrumentServer).RecordEvent(ctx, req.(*recordEventRequest))
	}
	return interceptor(ctx, req, info, handler)
}
