// Package hook implements named extension points with prioritized handlers.
//
// Components attach handlers to a hook name through the Registry and fire
// them through the Dispatcher. Every handler is an Entry identified by a
// stable id derived from the hook name, the handler identity and the group,
// so registering the same handler twice replaces the first registration.
//
// # Ordering
//
// Entries for a name run in ascending priority. Entries with equal priority
// run in registration order:
//
//	reg.Register("user.created", hook.Func(sendWelcome), hook.WithPriority(5))
//	reg.Register("user.created", hook.Func(audit)) // DefaultPriority = 10
//
// # Handlers
//
// Handlers are described by an Invocable:
//
//   - Func: a Go function, adapted by reflection when it is not a HandlerFunc
//   - Method: a method looked up by name on a receiver
//   - Ref: a "Type@method" reference resolved at call time by a Resolver
//
// Container is the default Resolver; it maps type names to factories.
//
// # Middleware
//
// Middleware gates each entry before it runs. All middleware registered for
// a name must approve. A veto or a panic skips only the current entry.
//
// # Failure isolation
//
// A handler that returns an error or panics is recorded in the Result as a
// HandlerError and dispatch continues with the next entry. Execute never
// returns an error and never panics because of a handler.
package hook
