// Package api serves the daemon's control surface: a single gRPC service
// whose requests and replies are google.protobuf.Struct messages.
package api

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/camlog/internal/ident"
	"github.com/matheus3301/camlog/internal/queue"
	"github.com/matheus3301/camlog/internal/remote"
	intstatus "github.com/matheus3301/camlog/internal/status"
	intsync "github.com/matheus3301/camlog/internal/sync"
	"github.com/matheus3301/camlog/internal/uploader"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "camlog.v1.Control"

// Method names.
const (
	MethodStatus       = "Status"
	MethodCapture      = "Capture"
	MethodRemovePhoto  = "RemovePhoto"
	MethodSetDraft     = "SetDraft"
	MethodSetMode      = "SetMode"
	MethodAbandonDraft = "AbandonDraft"
	MethodCommit       = "Commit"
	MethodListQueue    = "ListQueue"
	MethodEditItem     = "EditItem"
	MethodDeleteItem   = "DeleteItem"
	MethodResetAll     = "ResetAll"
	MethodUpload       = "Upload"
	MethodHistory      = "History"
	MethodSearch       = "Search"
)

// FullMethod returns the gRPC path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// MaxMessageSize bounds a request; captures carry whole photos.
const MaxMessageSize = 64 << 20

// Handler serves one method.
type Handler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Uploader runs manual upload cycles.
type Uploader interface {
	Upload(ctx context.Context) (uploader.Result, error)
	RetryPending() bool
}

// Remote answers read-only lookups.
type Remote interface {
	Configured() bool
	Endpoint() string
	PendingPhotos(ctx context.Context, limit int) ([]remote.PhotoRow, error)
	SearchByPO(ctx context.Context, query string) (remote.SearchResult, error)
}

// Connectivity reports the network state.
type Connectivity interface {
	Online() bool
}

// Deps are the collaborators of Control. Journal may be nil.
type Deps struct {
	Profile  string
	Queue    *queue.Queue
	Uploader Uploader
	Remote   Remote
	Net      Connectivity
	Machine  *intstatus.Machine
	Journal  *intsync.Journal
	Clock    ident.Clock
	Logger   *zap.Logger
}

// Control implements the control service.
type Control struct {
	profile   string
	startedAt time.Time
	queue     *queue.Queue
	up        Uploader
	remote    Remote
	net       Connectivity
	machine   *intstatus.Machine
	journal   *intsync.Journal
	clock     ident.Clock
	logger    *zap.Logger
}

// NewControl creates the control service.
func NewControl(d Deps) *Control {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = ident.RealClock{}
	}
	return &Control{
		profile:   d.Profile,
		startedAt: d.Clock.Now(),
		queue:     d.Queue,
		up:        d.Uploader,
		remote:    d.Remote,
		net:       d.Net,
		machine:   d.Machine,
		journal:   d.Journal,
		clock:     d.Clock,
		logger:    d.Logger,
	}
}

type controlServer interface {
	handlers() map[string]Handler
}

func (c *Control) handlers() map[string]Handler {
	return map[string]Handler{
		MethodStatus:       c.Status,
		MethodCapture:      c.Capture,
		MethodRemovePhoto:  c.RemovePhoto,
		MethodSetDraft:     c.SetDraft,
		MethodSetMode:      c.SetMode,
		MethodAbandonDraft: c.AbandonDraft,
		MethodCommit:       c.Commit,
		MethodListQueue:    c.ListQueue,
		MethodEditItem:     c.EditItem,
		MethodDeleteItem:   c.DeleteItem,
		MethodResetAll:     c.ResetAll,
		MethodUpload:       c.Upload,
		MethodHistory:      c.History,
		MethodSearch:       c.Search,
	}
}

// ServiceDesc describes the service for grpc.Server.RegisterService.
func (c *Control) ServiceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*controlServer)(nil),
		Metadata:    "camlog/v1/control",
	}
	for name, h := range c.handlers() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name, h),
		})
	}
	return desc
}

// Register adds the service to s.
func Register(s *grpc.Server, c *Control) {
	s.RegisterService(c.ServiceDesc(), c)
}

func unaryHandler(name string, h Handler) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return h(ctx, req.(*structpb.Struct))
		})
	}
}

// LoggingInterceptor logs every call with its duration and status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
			zap.String("code", status.Code(err).String()),
		}
		if err != nil {
			logger.Info("control call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("control call", fields...)
		}
		return resp, err
	}
}
