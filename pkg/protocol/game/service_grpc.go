package game

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	WorldService_JoinGame_FullMethodName   = "/game.WorldService/JoinGame"
	WorldService_GameStream_FullMethodName = "/game.WorldService/GameStream"
)

// WorldServiceClient is the client API for the game service.
type WorldServiceClient interface {
	JoinGame(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error)
	GameStream(ctx context.Context, opts ...grpc.CallOption) (WorldService_GameStreamClient, error)
}

type worldServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewWorldServiceClient wraps a connection. Every call is sent with the JSON
// content-subtype, so callers need no extra dial options.
func NewWorldServiceClient(cc grpc.ClientConnInterface) WorldServiceClient {
	return &worldServiceClient{cc}
}

func (c *worldServiceClient) JoinGame(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error) {
	out := new(JoinResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, WorldService_JoinGame_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *worldServiceClient) GameStream(ctx context.Context, opts ...grpc.CallOption) (WorldService_GameStreamClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &WorldService_ServiceDesc.Streams[0], WorldService_GameStream_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &worldServiceGameStreamClient{stream}, nil
}

// WorldService_GameStreamClient is the client side of the game stream.
type WorldService_GameStreamClient interface {
	Send(*ClientMessage) error
	Recv() (*ServerMessage, error)
	grpc.ClientStream
}

type worldServiceGameStreamClient struct {
	grpc.ClientStream
}

func (x *worldServiceGameStreamClient) Send(m *ClientMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *worldServiceGameStreamClient) Recv() (*ServerMessage, error) {
	m := new(ServerMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WorldServiceServer is the server API for the game service.
type WorldServiceServer interface {
	JoinGame(context.Context, *JoinRequest) (*JoinResponse, error)
	GameStream(WorldService_GameStreamServer) error
}

// UnimplementedWorldServiceServer can be embedded for forward compatibility.
type UnimplementedWorldServiceServer struct{}

func (UnimplementedWorldServiceServer) JoinGame(context.Context, *JoinRequest) (*JoinResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method JoinGame not implemented")
}

func (UnimplementedWorldServiceServer) GameStream(WorldService_GameStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method GameStream not implemented")
}

// RegisterWorldServiceServer registers srv on s.
func RegisterWorldServiceServer(s grpc.ServiceRegistrar, srv WorldServiceServer) {
	s.RegisterService(&WorldService_ServiceDesc, srv)
}

func _WorldService_JoinGame_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(JoinRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorldServiceServer).JoinGame(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: WorldService_JoinGame_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorldServiceServer).JoinGame(ctx, req.(*JoinRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _WorldService_GameStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(WorldServiceServer).GameStream(&worldServiceGameStreamServer{stream})
}

// WorldService_GameStreamServer is the server side of the game stream.
type WorldService_GameStreamServer interface {
	Send(*ServerMessage) error
	Recv() (*ClientMessage, error)
	grpc.ServerStream
}

type worldServiceGameStreamServer struct {
	grpc.ServerStream
}

func (x *worldServiceGameStreamServer) Send(m *ServerMessage) error {
	return x.ServerStream.SendMsg(m)
}

func (x *worldServiceGameStreamServer) Recv() (*ClientMessage, error) {
	m := new(ClientMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WorldService_ServiceDesc describes the game service for grpc.Server.
var WorldService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "game.WorldService",
	HandlerType: (*WorldServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "JoinGame",
			Handler:    _WorldService_JoinGame_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GameStream",
			Handler:       _WorldService_GameStream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "game.proto",
}
