// Package async runs fire-and-forget work with panic recovery and a timeout.
//
// Request handlers use it to hand off side effects, such as audit records, that
// must not delay or fail the response:
//
//	tasks := async.NewTracker(log)
//	tasks.Go(r.Context(), 5*time.Second, "audit role.assign", func(ctx context.Context) error {
//		return auditor.Log(ctx, event)
//	})
//
//	// during shutdown
//	tasks.Wait(ctx)
//
// The task context keeps the values of the parent context but is not cancelled
// when the parent is, so work started by a request outlives the request.
package async
