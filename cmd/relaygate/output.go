package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sagarc03/relaygate"
	relayhttp "github.com/sagarc03/relaygate/http"
)

// Formatter formats command results for output.
type Formatter interface {
	FormatRoutes(w io.Writer, routes relayhttp.RoutesResponse) error
	FormatServices(w io.Writer, descs []relaygate.ServiceDescriptor) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct{}

// FormatRoutes prints one line per binding followed by the skipped entries.
func (f *HumanFormatter) FormatRoutes(w io.Writer, routes relayhttp.RoutesResponse) error {
	if len(routes.Routes) == 0 {
		_, _ = fmt.Fprintln(w, "No routes registered")
	} else {
		maxPathLen := 4 // "PATH"
		for _, r := range routes.Routes {
			maxPathLen = max(maxPathLen, len(r.Path))
		}
		maxPathLen = min(maxPathLen, 60)

		_, _ = fmt.Fprintf(w, "%-7s  %-*s  %-4s  %-16s  %s\n", "METHOD", maxPathLen, "PATH", "AUTH", "SERVICE", "TARGET")
		_, _ = fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", strings.Repeat("-", 7), strings.Repeat("-", maxPathLen),
			strings.Repeat("-", 4), strings.Repeat("-", 16), strings.Repeat("-", 20))

		for _, r := range routes.Routes {
			auth := "no"
			if r.AuthRequired {
				auth = "yes"
			}
			_, _ = fmt.Fprintf(w, "%-7s  %-*s  %-4s  %-16s  %s\n",
				r.Method, maxPathLen, truncate(r.Path, maxPathLen), auth, truncate(r.Service, 16), r.Target)
		}

		_, _ = fmt.Fprintf(w, "\n%d route(s)\n", len(routes.Routes))
	}

	if len(routes.Skipped) > 0 {
		_, _ = fmt.Fprintf(w, "\nSkipped:\n")
		for _, s := range routes.Skipped {
			where := s.Service
			if s.Route != "" || s.Method != "" {
				where = strings.TrimSpace(fmt.Sprintf("%s %s %s", s.Service, s.Method, s.Route))
			}
			_, _ = fmt.Fprintf(w, "  %s: %s\n", where, s.Reason)
		}
	}

	return nil
}

// FormatServices prints one line per stored descriptor.
func (f *HumanFormatter) FormatServices(w io.Writer, descs []relaygate.ServiceDescriptor) error {
	if len(descs) == 0 {
		_, _ = fmt.Fprintln(w, "No services registered")
		return nil
	}

	maxIDLen := 2 // "ID"
	for i := range descs {
		maxIDLen = max(maxIDLen, len(descs[i].ID))
	}
	maxIDLen = min(maxIDLen, 30)

	_, _ = fmt.Fprintf(w, "%-*s  %-20s  %-20s  %6s\n", maxIDLen, "ID", "PREFIX", "HOST VAR", "ROUTES")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s\n", strings.Repeat("-", maxIDLen), strings.Repeat("-", 20),
		strings.Repeat("-", 20), strings.Repeat("-", 6))

	for i := range descs {
		d := &descs[i]
		_, _ = fmt.Fprintf(w, "%-*s  %-20s  %-20s  %6d\n", maxIDLen, truncate(d.ID, maxIDLen),
			truncate(d.GatewayPrefix, 20), truncate(d.TargetService.HostVar, 20), len(d.Routes))
	}

	_, _ = fmt.Fprintf(w, "\n%d service(s)\n", len(descs))
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatRoutes formats the route table as JSON.
func (f *JSONFormatter) FormatRoutes(w io.Writer, routes relayhttp.RoutesResponse) error {
	return writeJSON(w, routes)
}

// FormatServices formats descriptors as JSON in the descriptor file layout,
// so the output can be fed back to 'services import'.
func (f *JSONFormatter) FormatServices(w io.Writer, descs []relaygate.ServiceDescriptor) error {
	if descs == nil {
		descs = []relaygate.ServiceDescriptor{}
	}
	return writeJSON(w, descs)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
