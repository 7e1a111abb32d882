// Package engine implements the Garland class-decoration engine.
//
// This package contains:
//   - Tagged-variant element descriptors and definition validation
//   - The decorator chain evaluator and resolution interface
//   - The Evaluate → Call → Apply phase coordinator
//   - Capability tokens for hidden element access
//   - The metadata aggregator and inheritance-aware records
//   - The initializer scheduler and instance construction replay
//   - Content-addressed digests and CBOR wire encoding
package engine
