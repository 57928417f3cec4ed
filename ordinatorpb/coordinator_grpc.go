package ordinatorpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	Coordinator_RegisterMember_FullMethodName   = "/ordinator.Coordinator/RegisterMember"
	Coordinator_Heartbeat_FullMethodName        = "/ordinator.Coordinator/Heartbeat"
	Coordinator_GetAssignment_FullMethodName    = "/ordinator.Coordinator/GetAssignment"
	Coordinator_WatchAssignments_FullMethodName = "/ordinator.Coordinator/WatchAssignments"
	Coordinator_AppendLog_FullMethodName        = "/ordinator.Coordinator/AppendLog"
	Coordinator_ReadLog_FullMethodName          = "/ordinator.Coordinator/ReadLog"
	Coordinator_DeclareUnits_FullMethodName     = "/ordinator.Coordinator/DeclareUnits"
	Coordinator_ListMembers_FullMethodName      = "/ordinator.Coordinator/ListMembers"
)

// CoordinatorClient is the client API for the Coordinator service
type CoordinatorClient interface {
	RegisterMember(ctx context.Context, in *RegisterMemberRequest, opts ...grpc.CallOption) (*RegisterMemberResponse, error)
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	GetAssignment(ctx context.Context, in *GetAssignmentRequest, opts ...grpc.CallOption) (*GetAssignmentResponse, error)
	WatchAssignments(ctx context.Context, in *WatchAssignmentsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Assignment], error)
	AppendLog(ctx context.Context, in *AppendRequest, opts ...grpc.CallOption) (*AppendResponse, error)
	ReadLog(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[LogRecord], error)
	DeclareUnits(ctx context.Context, in *DeclareUnitsRequest, opts ...grpc.CallOption) (*DeclareUnitsResponse, error)
	ListMembers(ctx context.Context, in *ListMembersRequest, opts ...grpc.CallOption) (*ListMembersResponse, error)
}

type coordinatorClient struct {
	cc grpc.ClientConnInterface
}

// NewCoordinatorClient returns a Coordinator client using the ordinator codec
func NewCoordinatorClient(cc grpc.ClientConnInterface) CoordinatorClient {
	return &coordinatorClient{cc}
}

// callOptions prepends the codec selection to the provided options
func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{CallOption()}, opts...)
}

func (c *coordinatorClient) RegisterMember(ctx context.Context, in *RegisterMemberRequest, opts ...grpc.CallOption) (*RegisterMemberResponse, error) {
	out := new(RegisterMemberResponse)
	if err := c.cc.Invoke(ctx, Coordinator_RegisterMember_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, Coordinator_Heartbeat_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) GetAssignment(ctx context.Context, in *GetAssignmentRequest, opts ...grpc.CallOption) (*GetAssignmentResponse, error) {
	out := new(GetAssignmentResponse)
	if err := c.cc.Invoke(ctx, Coordinator_GetAssignment_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) WatchAssignments(ctx context.Context, in *WatchAssignmentsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Assignment], error) {
	stream, err := c.cc.NewStream(ctx, &Coordinator_ServiceDesc.Streams[0], Coordinator_WatchAssignments_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchAssignmentsRequest, Assignment]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *coordinatorClient) AppendLog(ctx context.Context, in *AppendRequest, opts ...grpc.CallOption) (*AppendResponse, error) {
	out := new(AppendResponse)
	if err := c.cc.Invoke(ctx, Coordinator_AppendLog_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) ReadLog(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[LogRecord], error) {
	stream, err := c.cc.NewStream(ctx, &Coordinator_ServiceDesc.Streams[1], Coordinator_ReadLog_FullMethodName, callOptions(opts)...)
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

func (c *coordinatorClient) DeclareUnits(ctx context.Context, in *DeclareUnitsRequest, opts ...grpc.CallOption) (*DeclareUnitsResponse, error) {
	out := new(DeclareUnitsResponse)
	if err := c.cc.Invoke(ctx, Coordinator_DeclareUnits_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) ListMembers(ctx context.Context, in *ListMembersRequest, opts ...grpc.CallOption) (*ListMembersResponse, error) {
	out := new(ListMembersResponse)
	if err := c.cc.Invoke(ctx, Coordinator_ListMembers_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// CoordinatorServer is the server API for the Coordinator service
type CoordinatorServer interface {
	RegisterMember(context.Context, *RegisterMemberRequest) (*RegisterMemberResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	GetAssignment(context.Context, *GetAssignmentRequest) (*GetAssignmentResponse, error)
	WatchAssignments(*WatchAssignmentsRequest, grpc.ServerStreamingServer[Assignment]) error
	AppendLog(context.Context, *AppendRequest) (*AppendResponse, error)
	ReadLog(*ReadRequest, grpc.ServerStreamingServer[LogRecord]) error
	DeclareUnits(context.Context, *DeclareUnitsRequest) (*DeclareUnitsResponse, error)
	ListMembers(context.Context, *ListMembersRequest) (*ListMembersResponse, error)
}

// UnimplementedCoordinatorServer can be embedded to have forward compatible implementations
type UnimplementedCoordinatorServer struct{}

func (UnimplementedCoordinatorServer) RegisterMember(context.Context, *RegisterMemberRequest) (*RegisterMemberResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterMember not implemented")
}
func (UnimplementedCoordinatorServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Heartbeat not implemented")
}
func (UnimplementedCoordinatorServer) GetAssignment(context.Context, *GetAssignmentRequest) (*GetAssignmentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAssignment not implemented")
}
func (UnimplementedCoordinatorServer) WatchAssignments(*WatchAssignmentsRequest, grpc.ServerStreamingServer[Assignment]) error {
	return status.Error(codes.Unimplemented, "method WatchAssignments not implemented")
}
func (UnimplementedCoordinatorServer) AppendLog(context.Context, *AppendRequest) (*AppendResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AppendLog not implemented")
}
func (UnimplementedCoordinatorServer) ReadLog(*ReadRequest, grpc.ServerStreamingServer[LogRecord]) error {
	return status.Error(codes.Unimplemented, "method ReadLog not implemented")
}
func (UnimplementedCoordinatorServer) DeclareUnits(context.Context, *DeclareUnitsRequest) (*DeclareUnitsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeclareUnits not implemented")
}
func (UnimplementedCoordinatorServer) ListMembers(context.Context, *ListMembersRequest) (*ListMembersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListMembers not implemented")
}

// RegisterCoordinatorServer registers the Coordinator service on the grpc server
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&Coordinator_ServiceDesc, srv)
}

func _Coordinator_RegisterMember_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RegisterMemberRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).RegisterMember(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Coordinator_RegisterMember_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServer).RegisterMember(ctx, req.(*RegisterMemberRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_Heartbeat_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Coordinator_Heartbeat_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_GetAssignment_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetAssignmentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).GetAssignment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Coordinator_GetAssignment_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServer).GetAssignment(ctx, req.(*GetAssignmentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_WatchAssignments_Handler(srv any, stream grpc.ServerStream) error {
	in := new(WatchAssignmentsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CoordinatorServer).WatchAssignments(in, &grpc.GenericServerStream[WatchAssignmentsRequest, Assignment]{ServerStream: stream})
}

func _Coordinator_AppendLog_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AppendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).AppendLog(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Coordinator_AppendLog_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServer).AppendLog(ctx, req.(*AppendRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_ReadLog_Handler(srv any, stream grpc.ServerStream) error {
	in := new(ReadRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CoordinatorServer).ReadLog(in, &grpc.GenericServerStream[ReadRequest, LogRecord]{ServerStream: stream})
}

func _Coordinator_DeclareUnits_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeclareUnitsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).DeclareUnits(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Coordinator_DeclareUnits_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServer).DeclareUnits(ctx, req.(*DeclareUnitsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_ListMembers_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListMembersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).ListMembers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Coordinator_ListMembers_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServer).ListMembers(ctx, req.(*ListMembersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Coordinator_ServiceDesc is the grpc.ServiceDesc for the Coordinator service
var Coordinator_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ordinator.Coordinator",
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterMember", Handler: _Coordinator_RegisterMember_Handler},
		{MethodName: "Heartbeat", Handler: _Coordinator_Heartbeat_Handler},
		{MethodName: "GetAssignment", Handler: _Coordinator_GetAssignment_Handler},
		{MethodName: "AppendLog", Handler: _Coordinator_AppendLog_Handler},
		{MethodName: "DeclareUnits", Handler: _Coordinator_DeclareUnits_Handler},
		{MethodName: "ListMembers", Handler: _Coordinator_ListMembers_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchAssignments", Handler: _Coordinator_WatchAssignments_Handler, ServerStreams: true},
		{StreamName: "ReadLog", Handler: _Coordinator_ReadLog_Handler, ServerStreams: true},
	},
	Metadata: "ordinator.proto",
}
