package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"carwash/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// gRPC names of the booking feed.
const (
	FeedServiceName     = "carwash.v1.BookingFeed"
	WatchBookingsStream = "WatchBookings"
	WatchBookingsMethod = "/" + FeedServiceName + "/" + WatchBookingsStream
)

var watchBookingsDesc = &grpc.StreamDesc{
	StreamName:    WatchBookingsStream,
	ServerStreams: true,
}

// BookingToStruct converts a booking to its JSON shape as a protobuf Struct.
func BookingToStruct(b *models.Booking) (*structpb.Struct, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// StructToBooking is the inverse of BookingToStruct with DecodePayload defaults.
func StructToBooking(s *structpb.Struct, now time.Time) *models.Booking {
	return FromFields(s.AsMap(), now)
}

// FeedClient follows a remote WatchBookings stream and hands every booking
// to a Receiver. It reconnects until its context is cancelled.
type FeedClient struct {
	addr      string
	keyHeader string
	apiKey    string
	receiver  *Receiver
	backoff   time.Duration
	dialOpts  []grpc.DialOption
	logger    zerolog.Logger
}

func NewFeedClient(addr, keyHeader, apiKey string, receiver *Receiver, logger *zerolog.Logger, opts ...grpc.DialOption) *FeedClient {
	if keyHeader == "" {
		keyHeader = "x-api-key"
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: time.Minute, Timeout: 20 * time.Second, PermitWithoutStream: true}),
		}
	}
	c := &FeedClient{
		addr:      addr,
		keyHeader: keyHeader,
		apiKey:    apiKey,
		receiver:  receiver,
		backoff:   5 * time.Second,
		dialOpts:  opts,
		logger:    zerolog.Nop(),
	}
	if logger != nil {
		c.logger = logger.With().Str("component", "feed_client").Str("addr", addr).Logger()
	}
	return c
}

func (c *FeedClient) Run(ctx context.Context) error {
	conn, err := grpc.NewClient(c.addr, c.dialOpts...)
	if err != nil {
		return fmt.Errorf("dial booking feed %s: %w", c.addr, err)
	}
	defer conn.Close()

	for {
		err := c.follow(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn().Err(err).Dur("retry_in", c.backoff).Msg("booking feed interrupted")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.backoff):
		}
	}
}

func (c *FeedClient) follow(ctx context.Context, conn *grpc.ClientConn) error {
	if c.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, c.keyHeader, c.apiKey)
	}

	stream, err := conn.NewStream(ctx, watchBookingsDesc, WatchBookingsMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	c.logger.Info().Msg("following booking feed")
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("feed closed by server")
			}
			return err
		}
		c.receiver.DeliverBooking(ChannelFeed, StructToBooking(msg, time.Now()))
	}
}
