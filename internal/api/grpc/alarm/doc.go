// Package alarm implements the gRPC transport for the temperature monitor.
//
// The service is described by hand with a grpc.ServiceDesc: every method takes
// and returns a google.protobuf.Struct, so clients need no generated stubs and
// the CLI can print responses as protojson. The server adapts domain snapshots,
// output states and stored events to those structs and maps domain errors to
// gRPC status codes.
package alarm
