// Package remote models the imagery-processing backend boundary: opaque
// raster handles, the compute and export interfaces the pipeline consumes,
// and an HTTP implementation of both.
package remote

import (
	"encoding/json"
	"time"
)

// Artifact names an output type computed per period.
type Artifact string

const (
	// Cover is the binary vegetation-cover mosaic (primary artifact).
	Cover Artifact = "vc"
	// Index is the continuous vegetation-index mosaic (secondary artifact).
	Index Artifact = "ndvi"
)

// FillValue is the constant used for this artifact when a period has no
// usable source imagery: cover defaults to "no vegetation", the index to
// a recognizable sentinel.
func (a Artifact) FillValue() float64 {
	if a == Index {
		return -9999
	}
	return 0
}

// Handle is an opaque reference to a raster expression. The backend
// evaluates it lazily; the pipeline only moves handles around and never
// inspects them. Constant handles are synthesized locally so placeholder
// substitution performs no I/O.
type Handle struct {
	Expr json.RawMessage
}

// IsZero reports whether h references nothing.
func (h Handle) IsZero() bool { return len(h.Expr) == 0 }

// ConstantRaster builds a handle for a constant-valued raster band,
// clipped to the session region when the backend evaluates it.
// Deterministic and local: equal inputs produce byte-equal expressions.
func ConstantRaster(value float64, band string) Handle {
	expr, _ := json.Marshal(struct {
		Op    string  `json:"op"`
		Value float64 `json:"value"`
		Band  string  `json:"band"`
	}{Op: "constant", Value: value, Band: band})
	return Handle{Expr: expr}
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Filters carries the per-scene selection and band-math parameters.
type Filters struct {
	CloudCoverMax  int
	CoverThreshold float64
}

// QueryResult summarizes the scenes matching a window and filter set.
type QueryResult struct {
	ImageCount int
	SourceIDs  []string
}

// ExportOptions are the georeferencing parameters for a file export.
type ExportOptions struct {
	CRS      string
	Scale    int
	DataType string
}
