// Package grpc serves run_embedding as a unary gRPC method. Requests and
// responses are google.protobuf.Struct values carrying the same named
// arguments and result dictionary as the HTTP API, so no generated code is
// needed on either side.
package grpc

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/internal/service"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/tsne"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "rtsne.v1.EmbeddingService"

	// RunEmbeddingMethod is the full method path used by clients.
	RunEmbeddingMethod = "/" + ServiceName + "/RunEmbedding"
)

// Response field names.
const (
	FieldResult     = "result"
	FieldRunID      = "run_id"
	FieldDurationMS = "duration_ms"
)

// EmbeddingServer is the server API for the embedding service.
type EmbeddingServer interface {
	RunEmbedding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the embedding service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EmbeddingServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RunEmbedding",
			Handler:    runEmbeddingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rtsne/v1/embedding.proto",
}

func runEmbeddingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EmbeddingServer).RunEmbedding(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RunEmbeddingMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EmbeddingServer).RunEmbedding(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements EmbeddingServer on top of the embedding service.
type Server struct {
	svc    *service.Service
	logger *zap.SugaredLogger
}

// NewServer creates the gRPC handler.
func NewServer(svc *service.Service, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.ComponentLogger("grpc")
	}
	return &Server{svc: svc, logger: log}
}

// Register adds the embedding service to s.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// RunEmbedding runs one embedding from the request's named arguments.
func (s *Server) RunEmbedding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	out, err := s.svc.Embed(ctx, req.AsMap(), service.SourceGRPC, nil)
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := out.Result.AsStruct()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldResult:     structpb.NewStructValue(result),
		FieldRunID:      structpb.NewStringValue(out.RunID),
		FieldDurationMS: structpb.NewNumberValue(float64(out.Duration.Milliseconds())),
	}}, nil
}

// toStatus maps embedding errors to gRPC status codes, keeping the message.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case tsne.IsArgumentTypeError(err):
		code = codes.InvalidArgument
	case tsne.IsNativeComputationError(err):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.IsServiceUnavailableError(err):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

// Serve runs a gRPC server with the embedding service on l until ctx is done.
func Serve(ctx context.Context, l net.Listener, svc *service.Service, log *zap.SugaredLogger) error {
	if log == nil {
		log = logger.ComponentLogger("grpc")
	}
	gs := grpc.NewServer()
	NewServer(svc, log).Register(gs)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	log.Infow("gRPC server listening", logger.FieldAddress, l.Addr().String())
	if err := gs.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "grpc server failed")
	}
	return nil
}
