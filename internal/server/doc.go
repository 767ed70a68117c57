// Package server hosts the Fiber diagnostics service that exposes the dataset
// registry and cache state over HTTP. It attaches recover and request-ID
// middlewares and registers /-/datasets routes backed by pipeline loaders, so
// operators can inspect, fetch or verify a cache without running a full load.
package server
