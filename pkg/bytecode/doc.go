// Package bytecode defines Vireo's structured bytecode representation: typed
// instructions linked into a mutable, randomly-insertable sequence, plus the
// method and class metadata the optimizer passes operate on.
//
// Unlike a flat byte array, instructions here are heap nodes in an intrusive
// doubly linked list. This gives every instruction a stable identity: an
// optimizer can insert or remove instructions anywhere in a method without
// invalidating pointers held elsewhere (dataflow results, call-graph entries,
// branch targets). Branch targets are instruction pointers for the same
// reason, so no label bookkeeping or offset patching is needed during
// rewriting.
//
// # Value model
//
// Values follow JVM-style width semantics: Long and Double occupy two stack
// units and two local-variable slots, everything else occupies one. Method
// and field types are described by JVM-style descriptors ("(IJ)V",
// "Lvireo/util/List;") parsed by this package.
//
// # Method mutable state
//
// A Method carries its instruction list plus two high-water marks: MaxLocals
// (local-variable slots) and MaxStack (operand-stack units). Passes that
// insert code must keep both marks large enough to cover everything they
// emit; EnsureLocals and EnsureStack raise the marks and never lower them.
package bytecode
