package api

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/camlog/internal/compress"
	"github.com/matheus3301/camlog/internal/queue"
	"github.com/matheus3301/camlog/internal/remote"
	"github.com/matheus3301/camlog/internal/uploader"
)

var codeOf = []struct {
	err  error
	code codes.Code
}{
	{queue.ErrLocked, codes.Aborted},
	{uploader.ErrBusy, codes.Aborted},
	{queue.ErrMutating, codes.Aborted},

	{queue.ErrDraftFull, codes.FailedPrecondition},
	{queue.ErrNoPhotos, codes.FailedPrecondition},
	{queue.ErrTooManyPhotos, codes.FailedPrecondition},
	{queue.ErrEmptyPO, codes.FailedPrecondition},
	{uploader.ErrDraftPending, codes.FailedPrecondition},
	{uploader.ErrQueueEmpty, codes.FailedPrecondition},
	{uploader.ErrNothingToSend, codes.FailedPrecondition},
	{uploader.ErrNotConfigured, codes.FailedPrecondition},
	{remote.ErrNotConfigured, codes.FailedPrecondition},

	{queue.ErrPORequired, codes.InvalidArgument},
	{queue.ErrIndex, codes.InvalidArgument},
	{queue.ErrPhotoIndex, codes.InvalidArgument},
	{queue.ErrUnknownPIC, codes.InvalidArgument},
	{compress.ErrUndecodable, codes.InvalidArgument},

	{uploader.ErrOffline, codes.Unavailable},
	{uploader.ErrStopped, codes.Unavailable},
}

// toStatus maps a domain error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range codeOf {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	var ierr *uploader.ItemError
	if errors.As(err, &ierr) {
		return status.Error(codes.Unavailable, err.Error())
	}
	var rerr *remote.ResponseError
	if errors.As(err, &rerr) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
