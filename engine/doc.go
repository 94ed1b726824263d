// Package engine implements the swarm runtime: the bus that routes published
// values to handlers, the per-handler dispatch loop and the run lifecycle.
//
// # Core Responsibilities
//
// Handler Registry:
//   - Collision-checked registration of handler declarations
//   - Frozen handler table once the swarm starts
//
// Routing:
//   - Publication to untagged, tagged or staged destinations
//   - Type and selector based subscription matching
//   - One unbounded FIFO mailbox per handler, so publishing never blocks
//
// Firing:
//   - Input gate, join state and output gate per handler
//   - Concurrent firings bounded per handler
//   - Blocking bodies offloaded to a shared worker pool
//   - Failure containment: a failing OneShot or Blocking firing publishes
//     nothing; a failing stream stops after the values it already emitted
//
// Lifecycle:
//   - Start, Run and RunFor with cooperative source cancellation
//   - Drain waits for in-flight work; Stop tears down immediately
//
// Observability:
//   - Lifecycle hooks (BeforeFire, AfterFire, OnReject, OnError, OnEvict)
//   - Prometheus counters and gauges from the metrics package
//   - An OpenTelemetry span per firing
//   - Inspection via Handlers, Pending and Stats
//
// # Usage
//
//	swarm := engine.New(func(o *engine.Options) {
//	    o.Logger = logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	})
//
//	swarm.MustRegister(engine.Declaration{
//	    Name:    "upper",
//	    Inputs:  []collect.Slot{collect.SlotOf[string]("in", core.OnTag("words"), nil)},
//	    Handler: handler.OneShot(upper),
//	})
//
//	if err := swarm.RunFor(ctx, time.Minute); err != nil {
//	    log.Fatal(err)
//	}
package engine
