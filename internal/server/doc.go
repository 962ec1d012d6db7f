// Package server implements the optional HTTP monitoring server exposing
// Prometheus metrics, health checks and run status for the detector.
package server
