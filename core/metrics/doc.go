// Package metrics exports reconciliation activity to Prometheus.
//
// Recorder implements reconcile.Recorder and is handed to the engine with
// reconcile.WithRecorder. Handler exposes a registry on a Fiber route:
//
//	reg := prometheus.NewRegistry()
//	engine := reconcile.NewEngine(store, cfg, reconcile.WithRecorder(metrics.NewRecorder(reg)))
//	app.Get("/metrics", metrics.Handler(reg))
package metrics
