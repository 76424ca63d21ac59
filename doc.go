// Package relaygate builds the routing core of an API gateway: it turns a
// declarative list of service descriptors into an immutable route table that
// an HTTP layer can mount and dispatch from.
//
// # Key Components
//
//   - ServiceDescriptor: one backend, its gateway prefix, target indirection,
//     timeouts and exposed routes
//   - ResolveTarget: resolves a descriptor's host variable and base path into
//     an absolute upstream URL
//   - Builder: produces a RouteTable with one RouteBinding per service, route
//     and method, skipping (and recording) anything it cannot resolve
//   - RewritePath: maps an incoming path to the path sent upstream
//
// # Example Usage
//
//	lookup, err := relaygate.HostLookup(".env")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	table := relaygate.NewBuilder(lookup, slog.Default()).Build(descriptors)
//	for _, b := range table.Bindings() {
//	    fmt.Println(b.Method.HTTP(), b.FullPath, "->", b.Target.String())
//	}
//
// The table is built once at startup and never mutated afterwards, so it can
// be shared by all request goroutines without locking. See the http package
// for the proxy dispatcher and router, and the registry package for loading
// descriptors from files or a database.
package relaygate
