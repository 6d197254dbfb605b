// Package ort implements the ONNX Runtime inference backend. All of its
// implementation is behind the "ort" build tag; without the tag the package
// registers nothing and backend.Open reports ErrNoBackend.
package ort
