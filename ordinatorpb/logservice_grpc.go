package ordinatorpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	LogService_Append_FullMethodName = "/ordinator.LogService/Append"
	LogService_Read_FullMethodName   = "/ordinator.LogService/Read"
)

// LogServiceClient is the client API for the LogService service
type LogServiceClient interface {
	Append(ctx context.Context, in *AppendRequest, opts ...grpc.CallOption) (*AppendResponse, error)
	Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[LogRecord], error)
}

type logServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLogServiceClient returns a LogService client using the ordinator codec
func NewLogServiceClient(cc grpc.ClientConnInterface) LogServiceClient {
	return &logServiceClient{cc}
}

func (c *logServiceClient) Append(ctx context.Context, in *AppendRequest, opts ...grpc.CallOption) (*AppendResponse, error) {
	out := new(AppendResponse)
	if err := c.cc.Invoke(ctx, LogService_Append_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *logServiceClient) Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[LogRecord], error) {
	stream, err := c.cc.NewStream(ctx, &LogService_ServiceDesc.Streams[0], LogService_Read_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[ReadRequest, LogRecord]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// LogServiceServer is the server API for the LogService service
type LogServiceServer interface {
	Append(context.Context, *AppendRequest) (*AppendResponse, error)
	Read(*ReadRequest, grpc.ServerStreamingServer[LogRecord]) error
}

// UnimplementedLogServiceServer can be embedded to have forward compatible implementations
type UnimplementedLogServiceServer struct{}

func (UnimplementedLogServiceServer) Append(context.Context, *AppendRequest) (*AppendResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Append not implemented")
}
func (UnimplementedLogServiceServer) Read(*ReadRequest, grpc.ServerStreamingServer[LogRecord]) error {
	return status.Error(codes.Unimplemented, "method Read not implemented")
}

// RegisterLogServiceServer registers the LogService service on the grpc server
func RegisterLogServiceServer(s grpc.ServiceRegistrar, srv LogServiceServer) {
	s.RegisterService(&LogService_ServiceDesc, srv)
}

func _LogService_Append_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AppendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogServiceServer).Append(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LogService_Append_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LogServiceServer).Append(ctx, req.(*AppendRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LogService_Read_Handler(srv any, stream grpc.ServerStream) error {
	in := new(ReadRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(LogServiceServer).Read(in, &grpc.GenericServerStream[ReadRequest, LogRecord]{ServerStream: stream})
}

// LogService_ServiceDesc is the grpc.ServiceDesc for the LogService service
var LogService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ordinator.LogService",
	HandlerType: (*LogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Append", Handler: _LogService_Append_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Read", Handler: _LogService_Read_Handler, ServerStreams: true},
	},
	Metadata: "ordinator.proto",
}
