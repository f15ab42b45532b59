package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tempmon.v1.AlarmService"

// Method names of the alarm service.
const (
	MethodListAlarms         = "ListAlarms"
	MethodAcknowledge        = "Acknowledge"
	MethodAcknowledgeHighest = "AcknowledgeHighest"
	MethodAcknowledgeAll     = "AcknowledgeAll"
	MethodAddAlarm           = "AddAlarm"
	MethodRemoveAlarm        = "RemoveAlarm"
	MethodUpdateAlarm        = "UpdateAlarm"
	MethodSetDelays          = "SetAcknowledgedDelays"
	MethodListOutputs        = "ListOutputs"
	MethodSetRelayMode       = "SetRelayMode"
	MethodHistory            = "History"
	MethodPressButton        = "PressButton"
)

// FullMethod returns the "/service/method" path used on the wire.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// alarmServiceServer is the handler contract checked by grpc.Server.RegisterService.
type alarmServiceServer interface {
	ListAlarms(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Acknowledge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AcknowledgeHighest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AcknowledgeAll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AddAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RemoveAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetAcknowledgedDelays(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListOutputs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetRelayMode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PressButton(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// unaryCall is one method of alarmServiceServer.
type unaryCall func(srv alarmServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// serviceDesc describes the alarm service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level in generated code too.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*alarmServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodListAlarms, alarmServiceServer.ListAlarms),
		method(MethodAcknowledge, alarmServiceServer.Acknowledge),
		method(MethodAcknowledgeHighest, alarmServiceServer.AcknowledgeHighest),
		method(MethodAcknowledgeAll, alarmServiceServer.AcknowledgeAll),
		method(MethodAddAlarm, alarmServiceServer.AddAlarm),
		method(MethodRemoveAlarm, alarmServiceServer.RemoveAlarm),
		method(MethodUpdateAlarm, alarmServiceServer.UpdateAlarm),
		method(MethodSetDelays, alarmServiceServer.SetAcknowledgedDelays),
		method(MethodListOutputs, alarmServiceServer.ListOutputs),
		method(MethodSetRelayMode, alarmServiceServer.SetRelayMode),
		method(MethodHistory, alarmServiceServer.History),
		method(MethodPressButton, alarmServiceServer.PressButton),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tempmon/v1/alarm.proto",
}

// Register attaches the server to a gRPC registrar.
func Register(registrar grpc.ServiceRegistrar, server *Server) {
	registrar.RegisterService(&serviceDesc, server)
}

// method builds a unary method descriptor that decodes a Struct request
// and runs it through the optional interceptor.
func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}

			server, _ := srv.(alarmServiceServer)

			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				request, _ := req.(*structpb.Struct)

				return call(server, ctx, request)
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}
