// Package metrics is the shared metric store of a load run.
//
// Workers write samples by name into a [Sink]; the first write of a name fixes
// its [Kind]:
//   - [KindCounter]: monotonically summed values (http_reqs, fail_count)
//   - [KindGauge]: last value with extremes (vus)
//   - [KindRate]: fraction of non-zero samples (http_req_failed, success_rate)
//   - [KindTrend]: distribution of values (http_req_duration, lock_wait_time)
//
// A write that disagrees with the registered kind is rejected and counted; it
// never corrupts the metric.
//
//	sink := metrics.NewSink()
//	sink.Count("http_reqs", 1)
//	sink.Rate("http_req_failed", false)
//	sink.TrendDuration("http_req_duration", latency)
//
//	snap := sink.Snapshot(elapsed)
//	p95, _ := snap.Metrics["http_req_duration"].Stat("p(95)")
//
// # Thread Safety
//
// The registry is guarded by a read-write lock that is only write-locked when a
// metric is created. Every metric has its own mutex, so writers of different
// metrics never contend and each metric's updates are linearizable.
//
// # Accuracy
//
// Trend quantiles are computed from an HDR histogram with 3 significant figures
// (at most 0.1% relative error). Minimum, maximum and mean are exact.
package metrics
