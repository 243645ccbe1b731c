/*
Package observability turns engine lifecycle hooks into Prometheus metrics.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	eng, _ := ussdpilot.New(host, ussdpilot.WithLifecycleHooks(metrics.Hooks()))
	http.Handle("/metrics", promhttp.Handler())
*/
package observability
