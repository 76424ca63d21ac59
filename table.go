package relaygate

import (
	"context"
	"errors"
	"log/slog"
)

// SkipReason classifies why part of a descriptor produced no binding.
type SkipReason string

const (
	SkipUnresolvedTarget  SkipReason = "unresolved_target"
	SkipUnsupportedMethod SkipReason = "unsupported_method"
	SkipNoMethods         SkipReason = "no_methods"
)

// Skip records one configuration entry the builder could not turn into a binding.
type Skip struct {
	Service string
	Route   string
	Method  string
	Reason  SkipReason
	Err     error
}

// RouteTable is the immutable result of Builder.Build. It is safe for
// concurrent use by any number of readers.
type RouteTable struct {
	bindings []RouteBinding
	index    map[string]int
	skipped  []Skip
}

// Len returns the number of active bindings.
func (t *RouteTable) Len() int { return len(t.bindings) }

// Bindings returns a copy of the active bindings in registration order.
func (t *RouteTable) Bindings() []RouteBinding {
	out := make([]RouteBinding, len(t.bindings))
	copy(out, t.bindings)
	return out
}

// Lookup returns the binding registered for method and full path.
func (t *RouteTable) Lookup(method Method, fullPath string) (RouteBinding, bool) {
	i, ok := t.index[RouteBinding{Method: method, FullPath: fullPath}.Key()]
	if !ok {
		return RouteBinding{}, false
	}
	return t.bindings[i], true
}

// ForService returns the bindings owned by serviceID.
func (t *RouteTable) ForService(serviceID string) []RouteBinding {
	var out []RouteBinding
	for _, b := range t.bindings {
		if b.ServiceID == serviceID {
			out = append(out, b)
		}
	}
	return out
}

// Skipped returns the configuration entries that were dropped during the build.
func (t *RouteTable) Skipped() []Skip {
	out := make([]Skip, len(t.skipped))
	copy(out, t.skipped)
	return out
}

func (t *RouteTable) register(b RouteBinding, logger *slog.Logger) {
	key := b.Key()
	if i, ok := t.index[key]; ok {
		logger.Warn("route binding replaced",
			"method", b.Method, "path", b.FullPath,
			"previous_service", t.bindings[i].ServiceID, "service", b.ServiceID)
		t.bindings[i] = b
		return
	}
	t.index[key] = len(t.bindings)
	t.bindings = append(t.bindings, b)
}

// Builder turns service descriptors into a RouteTable.
type Builder struct {
	lookup Lookup
	logger *slog.Logger
}

// NewBuilder creates a Builder. A nil lookup reads the process environment
// and a nil logger uses slog.Default().
func NewBuilder(lookup Lookup, logger *slog.Logger) *Builder {
	if lookup == nil {
		lookup = EnvLookup
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{lookup: lookup, logger: logger}
}

// Build produces the best table the descriptors allow. It never fails:
// services whose target does not resolve and unsupported methods are logged,
// recorded in RouteTable.Skipped and left out.
func (b *Builder) Build(descs []ServiceDescriptor) *RouteTable {
	table := &RouteTable{index: make(map[string]int)}

	for _, desc := range descs {
		target, err := ResolveTarget(desc, b.lookup)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, ErrInvalidTarget) {
				level = slog.LevelError
			}
			b.logger.Log(context.Background(), level, "skipping service: target not resolved",
				"service", desc.ID, "host_var", desc.TargetService.HostVar, "err", err)
			table.skipped = append(table.skipped, Skip{Service: desc.ID, Reason: SkipUnresolvedTarget, Err: err})
			continue
		}

		for _, route := range desc.Routes {
			fullPath := desc.GatewayPrefix + route.Route

			if len(route.Methods) == 0 {
				b.logger.Warn("skipping route: no methods", "service", desc.ID, "path", fullPath)
				table.skipped = append(table.skipped, Skip{Service: desc.ID, Route: route.Route, Reason: SkipNoMethods})
				continue
			}

			for _, raw := range route.Methods {
				method, err := ParseMethod(raw)
				if err != nil {
					b.logger.Warn("skipping unsupported method",
						"service", desc.ID, "path", fullPath, "method", raw)
					table.skipped = append(table.skipped, Skip{
						Service: desc.ID, Route: route.Route, Method: raw,
						Reason: SkipUnsupportedMethod, Err: err,
					})
					continue
				}

				binding := RouteBinding{
					ServiceID:      desc.ID,
					GatewayPrefix:  desc.GatewayPrefix,
					Route:          route.Route,
					FullPath:       fullPath,
					Method:         method,
					AuthRequired:   route.AuthRequired,
					Target:         target,
					ConnectTimeout: desc.Timeouts.Connect(),
					ReadTimeout:    desc.Timeouts.Read(),
				}
				table.register(binding, b.logger)

				b.logger.Debug("route registered",
					"service", desc.ID, "method", method.HTTP(), "path", fullPath,
					"target", target.String(), "auth_required", route.AuthRequired)
			}
		}
	}

	b.logger.Info("route table built", "bindings", table.Len(), "skipped", len(table.skipped))
	return table
}
