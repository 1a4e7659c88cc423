package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Сервис описан вручную поверх well-known типов: запрос — id комнаты
// (StringValue), ответ — RoomView в виде Struct.
const (
	ServiceName     = "qaroom.v1.RoomService"
	methodGetRoom   = "GetRoom"
	methodWatchRoom = "WatchRoom"

	GetRoomMethod   = "/" + ServiceName + "/" + methodGetRoom
	WatchRoomMethod = "/" + ServiceName + "/" + methodWatchRoom
)

type RoomServiceServer interface {
	GetRoom(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
	WatchRoom(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

var RoomServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RoomServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodGetRoom, Handler: getRoomHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: methodWatchRoom, Handler: watchRoomHandler, ServerStreams: true},
	},
	Metadata: "qaroom/v1/room.proto",
}

func Register(s grpc.ServiceRegistrar, srv RoomServiceServer) {
	s.RegisterService(&RoomServiceDesc, srv)
}

func getRoomHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoomServiceServer).GetRoom(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetRoomMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoomServiceServer).GetRoom(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func watchRoomHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RoomServiceServer).WatchRoom(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
}
