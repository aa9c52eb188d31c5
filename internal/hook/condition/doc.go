// Package condition evaluates declarative condition descriptors.
//
// A descriptor compares an actual value taken from the request Context
// (environment name, auth state, roles, configuration, wall-clock time)
// against an expected value with an operator. A list of descriptors passes
// only if every descriptor passes.
//
// Descriptors with an unknown type or operator are resolved by the
// evaluator Policy. The default is FailOpen, which treats them as passing
// and logs a warning. Hook names registered with WithStrictNames always
// fail closed.
//
// Evaluator.Middleware turns a descriptor list into a hook.Middleware so
// the dispatcher needs no separate condition path.
package condition
