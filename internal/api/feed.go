package api

import (
	"time"

	"carwash/internal/events"
	"carwash/internal/models"
	"carwash/internal/notify"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// BookingFeedServer streams newly created bookings to other processes.
type BookingFeedServer interface {
	WatchBookings(req *emptypb.Empty, stream grpc.ServerStream) error
}

var bookingFeedServiceDesc = grpc.ServiceDesc{
	ServiceName: notify.FeedServiceName,
	HandlerType: (*BookingFeedServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{{
		StreamName:    notify.WatchBookingsStream,
		Handler:       watchBookingsHandler,
		ServerStreams: true,
	}},
	Metadata: "carwash/v1/feed.proto",
}

func watchBookingsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BookingFeedServer).WatchBookings(in, stream)
}

func RegisterBookingFeedServer(s grpc.ServiceRegistrar, srv BookingFeedServer) {
	s.RegisterService(&bookingFeedServiceDesc, srv)
}

const feedBuffer = 64

// BookingFeed relays booking.created events from the in-process bus.
type BookingFeed struct {
	bus *events.EventBus
	log zerolog.Logger
}

var _ BookingFeedServer = (*BookingFeed)(nil)

func NewBookingFeed(bus *events.EventBus, logger *zerolog.Logger) *BookingFeed {
	f := &BookingFeed{bus: bus, log: zerolog.Nop()}
	if logger != nil {
		f.log = logger.With().Str("component", "booking_feed").Logger()
	}
	return f
}

// WatchBookings sends every booking created after the call until the
// client goes away. A subscriber that falls behind loses bookings; the
// mailbox channel still carries them.
func (f *BookingFeed) WatchBookings(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch := make(chan *models.Booking, feedBuffer)
	unsubscribe := f.bus.Subscribe(events.EventBookingCreated, func(ev *events.Event) error {
		b := notify.DecodePayload(ev.Payload, eventTime(ev))
		if b == nil {
			return nil
		}
		select {
		case ch <- b:
		default:
			f.log.Warn().Str("booking_id", b.ID).Msg("feed subscriber lagging, booking dropped")
		}
		return nil
	})
	defer unsubscribe()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-ch:
			msg, err := notify.BookingToStruct(b)
			if err != nil {
				f.log.Error().Err(err).Str("booking_id", b.ID).Msg("encode booking")
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// eventTime falls back to the receive time for events without a timestamp.
func eventTime(ev *events.Event) time.Time {
	if ev.CreatedAt.IsZero() {
		return time.Now()
	}
	return ev.CreatedAt
}
