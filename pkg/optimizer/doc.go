// Package optimizer holds Vireo's bytecode optimization passes.
//
// The closure-call pass detects closures that are both created and invoked
// inside the same method body and redirects each matching invocation to the
// closure's implementation method, bypassing the closure object and its
// dynamic dispatch. The closure creation instruction itself is left in
// place; erasing creations that become unused is a separate downstream pass,
// as is eliminating any unreachable code the rewrite introduces.
//
// The rewrite is pure instruction-stream surgery on the shared mutable
// method representation: captured values and call arguments are spilled to
// fresh local slots, the closure receiver is popped, and a direct call is
// emitted in the invocation's place. Local-slot and max-stack high-water
// marks are raised to cover everything inserted, never lowered.
//
// Per-call-site failures (the implementation method cannot be resolved, or
// is not visible from the rewrite site) are reported as warnings and leave
// that site dispatching dynamically; they never abort other sites, closures,
// or methods.
package optimizer
