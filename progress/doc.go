// Package progress accumulates progress for long-running, incrementally
// measurable operations and decides when observers should hear about it.
//
// The package is built from three pieces:
//   - Sink: the mutable (current, total) counter for one operation. Every
//     mutation publishes the raw pair.
//   - Strategy: decides whether a raw pair is worth a notification and
//     computes its percentage (ChunkedPercentage, Throttled, Never).
//   - Channel: runs the strategy against each raw pair and fans accepted
//     values out to subscribed observers, in registration order.
//
// Operation bundles the three for a single logical unit of work and carries
// its correlation ID.
//
// Basic usage:
//
//	strategy, err := progress.NewChunkedPercentage(5)
//	if err != nil {
//	    return err
//	}
//	op, err := progress.NewOperation[int64]("upload", size, strategy)
//	if err != nil {
//	    return err
//	}
//	sub := op.Channel.SubscribeFunc(
//	    func(v progress.Value[int64]) { fmt.Printf("%d%%\n", v.PercentComplete) },
//	    func() { fmt.Println("done") },
//	    func(err error) { fmt.Println("failed:", err) },
//	)
//	defer sub.Close()
//
//	for chunk := range chunks {
//	    op.Sink.Add(int64(len(chunk)))
//	}
//	op.Done(nil)
//
// Observers that prefer the Event/Reporter model used by the reporter and
// dispatch packages can be attached with Observe.
package progress
