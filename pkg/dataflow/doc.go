// Package dataflow performs operand-stack analysis over a single method
// body. For every reachable instruction it computes the stack shape on entry:
// the kind and width of each stack value, and the set of instructions that
// can have produced it along any path.
//
// The analysis is a fixpoint iteration over branch targets. At join points
// stack shapes must agree exactly (a mismatch is malformed bytecode and fails
// the analysis); producer sets are unioned. Stack heights count wide values
// as two units, matching local-slot width semantics.
//
// Building an Analyzer is comparatively expensive, so callers that may not
// need one should construct it lazily and memoize it per method.
package dataflow
