package visualiser

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Subscribe opens a frame stream for sensorID and calls fn for each
// decoded cloud until the stream ends, ctx is cancelled or fn returns an
// error. A clean end of stream returns nil.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, sensorID string, fn func(*PointCloud) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := conn.NewStream(ctx, &serviceDesc.Streams[0], streamFramesPath)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(wrapperspb.String(sensorID)); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(wrapperspb.BytesValue)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		pc, err := UnmarshalPointCloud(msg.GetValue())
		if err != nil {
			return err
		}
		if err := fn(pc); err != nil {
			return err
		}
	}
}
