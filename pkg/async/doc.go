// Package async runs fire-and-forget tasks with future-style handles.
//
// It exists for side effects that must not hold up a hot path, like marking
// a user offline after their connection drops:
//
//	future := async.Exec(ctx, userID, func(ctx context.Context, id string) error {
//		return identities.SetPresence(ctx, id, false)
//	})
//
//	// ... later, optionally:
//	if err := future.AwaitWithTimeout(5 * time.Second); err != nil {
//		if errors.Is(err, async.ErrTimeout) {
//			// task is still running, decide whether to keep waiting
//		}
//	}
//
// A pre-canceled context short-circuits the task before it starts. ExecAll
// and ExecAny aggregate multiple futures when a caller fans out several
// side effects at once.
//
// # Errors
//
//   - ErrTimeout: AwaitWithTimeout elapsed before the task finished
//   - ErrNoFutures: ExecAny called with no futures
package async
