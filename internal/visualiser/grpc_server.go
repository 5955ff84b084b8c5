package visualiser

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/rover-sim/internal/monitoring"
)

// Service and method names on the wire.
const (
	ServiceName      = "roversim.visualiser.v1.PointCloudService"
	StreamFramesName = "StreamFrames"
	streamFramesPath = "/" + ServiceName + "/" + StreamFramesName
)

// PointCloudServer is the server API for the point cloud stream. The
// request carries the wanted sensor ID; each response message is a
// Marshal'd PointCloud.
type PointCloudServer interface {
	StreamFrames(req *wrapperspb.StringValue, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PointCloudServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    StreamFramesName,
			Handler:       streamFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "roversim/visualiser/v1/pointcloud.proto",
}

func streamFramesHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(PointCloudServer).StreamFrames(req, stream)
}

// RegisterService registers the point cloud service with grpcServer.
func RegisterService(grpcServer grpc.ServiceRegistrar, server PointCloudServer) {
	grpcServer.RegisterService(&serviceDesc, server)
}

// Ensure Server implements the service interface.
var _ PointCloudServer = (*Server)(nil)

// Server streams frames from a Publisher.
type Server struct {
	publisher *Publisher
}

// NewServer creates a new gRPC server.
func NewServer(publisher *Publisher) *Server {
	return &Server{publisher: publisher}
}

// StreamFrames implements the streaming RPC for frame data.
func (s *Server) StreamFrames(req *wrapperspb.StringValue, stream grpc.ServerStream) error {
	want := req.GetValue()
	if want != "" && want != s.publisher.config.SensorID {
		return status.Errorf(codes.NotFound, "unknown sensor %q", want)
	}
	client := s.publisher.addClient()
	if client == nil {
		return status.Errorf(codes.ResourceExhausted, "client limit %d reached", s.publisher.config.MaxClients)
	}
	defer s.publisher.removeClient(client.id)

	return s.pump(stream.Context(), client, stream)
}

func (s *Server) pump(ctx context.Context, client *clientStream, stream grpc.ServerStream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.publisher.stopCh:
			return nil
		case pc := <-client.frameCh:
			if err := stream.SendMsg(wrapperspb.Bytes(pc.Marshal())); err != nil {
				monitoring.Logf("[Visualiser] Send error for %s: %v", client.id, err)
				return err
			}
		}
	}
}
