package main

import "github.com/prometheus/client_golang/prometheus"

// newTestRegistry returns a private Prometheus registry so tests never
// collide with each other (or with prometheus.DefaultRegisterer) by
// registering the same collector name twice.
func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
