package api

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// Status reports the daemon's state: sync status, connectivity, queue
// counters and the last recorded cycle outcomes.
func (c *Control) Status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := c.queue.State()
	out := map[string]any{
		"profile":       c.profile,
		"uptime_ms":     c.clock.Now().Sub(c.startedAt).Milliseconds(),
		"status":        string(c.machine.Current()),
		"last_error":    c.machine.LastError(),
		"online":        c.net.Online(),
		"configured":    c.remote.Configured(),
		"endpoint":      c.remote.Endpoint(),
		"armed":         st.Armed,
		"locked":        c.queue.Locked(),
		"retry_pending": c.up.RetryPending(),
		"stats":         statsView(st.Stats()),
		"draft":         draftView(st.Draft),
	}
	if c.journal != nil {
		if s, err := c.journal.LastSuccess(ctx); err != nil {
			c.logger.Warn("read sync journal", zap.Error(err))
		} else if s != nil {
			out["last_success_ms"] = s.At
			out["last_delivered"] = s.Delivered
		}
		if f, err := c.journal.LastFailure(ctx); err != nil {
			c.logger.Warn("read sync journal", zap.Error(err))
		} else if f != nil {
			out["last_failure_ms"] = f.At
			out["last_failure"] = f.Error
			out["last_failure_upload_id"] = f.UploadID
		}
	}
	return reply(out)
}
