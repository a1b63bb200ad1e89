// Package batch queues up items until the queue fills up or a time interval
// elapses, then hands them, in groups bounded by capacity, to a caller-supplied
// processor.
//
// # Usage
//
// Create a Batcher with a scheduled executor, capacity, delay, and processor:
//
//	b := batch.NewBatcher(executor, 100, 5*time.Second, batch.ProcessorFunc[Doc](func(items []Doc) {
//	    // send items downstream
//	}))
//	defer b.Close()
//
//	b.Add(doc)
//
// Items are delivered to the processor from the executor's goroutines, never
// from the caller of Add. If the queue is empty for at least delay before the
// next add, the next group is rushed through without waiting out the full
// delay again (the batcher does not let latency compound).
//
// # Configuration
//
//   - Capacity: maximum items delivered to the processor in one call. Filling
//     the inbox to capacity triggers an immediate delivery.
//   - Delay: maximum time to wait before delivering a partial group.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package batch
