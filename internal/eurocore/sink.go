package eurocore

import (
	"context"

	kit "eurobot/internal/transport"
)

// NotificationSink delivers job status to the initiating user. The chat
// platform implements it.
//
// Render must be idempotent: repeated calls with the same job state produce
// the same visible content. Ping is best-effort; its failure is logged by
// the caller and never treated as a job failure.
type NotificationSink interface {
	// Render creates or updates the status message for job and returns its
	// handle. The first call (zero RenderTarget) creates the message;
	// subsequent calls edit it in place.
	Render(ctx context.Context, job Job) (kit.MessageRef, error)

	// Ping mentions the initiator on the job's rendered message.
	Ping(ctx context.Context, job Job) error
}
