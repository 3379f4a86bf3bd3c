package models

import "fmt"

// RouteType identifies which data source(s) a query should be sent to.
type RouteType int

const (
	// RouteNone means the query is off-topic and no backend is consulted
	RouteNone RouteType = iota
	// RouteUnstructured routes to semantic search over advisories
	RouteUnstructured
	// RouteStructured routes to the vulnerability database tools
	RouteStructured
	// RouteHybrid routes to both sources and synthesizes the answers
	RouteHybrid
)

// String returns the wire token for the route type, matching the values
// the router prompt asks the model to emit.
func (r RouteType) String() string {
	switch r {
	case RouteNone:
		return "none"
	case RouteUnstructured:
		return "unstructured"
	case RouteStructured:
		return "structured"
	case RouteHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// ParseRouteType converts a route token into a RouteType.
// Returns false if the token is not one of the four known values.
func ParseRouteType(s string) (RouteType, bool) {
	switch s {
	case "none":
		return RouteNone, true
	case "unstructured":
		return RouteUnstructured, true
	case "structured":
		return RouteStructured, true
	case "hybrid":
		return RouteHybrid, true
	default:
		return RouteNone, false
	}
}

// RouteResult is the routing decision for a single query.
// UnstructuredQuery is set iff the route type is unstructured or hybrid;
// StructuredQuery is set iff the route type is structured or hybrid.
type RouteResult struct {
	RouteType         RouteType
	UnstructuredQuery string
	StructuredQuery   string
	Reasoning         string
}
