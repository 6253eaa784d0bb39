package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ComputeClient is the imagery backend the period pipeline depends on.
// Implementations are bound to a region geometry at construction; every
// mosaic and statistic is clipped to that region.
type ComputeClient interface {
	// Query counts and lists the source scenes matching a window.
	Query(ctx context.Context, w Window, f Filters) (QueryResult, error)

	// ComposeMosaic cloud-masks, band-maths and mosaics the matching
	// scenes into a single-band raster named label.
	ComposeMosaic(ctx context.Context, w Window, f Filters, a Artifact, label string) (Handle, error)

	// MeanValue reduces a raster band to its regional mean.
	MeanValue(ctx context.Context, h Handle, band string) (float64, error)

	// StackBands combines ordered single-band handles into one
	// multi-band raster; band i is renamed labels[i]. Attrs are attached
	// to the result as file-level metadata.
	StackBands(ctx context.Context, handles []Handle, labels []string, attrs map[string]string) (Handle, error)

	// ConstantRaster synthesizes a constant-valued band clipped to the
	// session region. Local and deterministic; never performs I/O.
	ConstantRaster(value float64, band string) Handle
}

// ExportBackend converts a raster handle into a georeferenced file on disk.
type ExportBackend interface {
	Export(ctx context.Context, h Handle, path string, opts ExportOptions) error
}

// Session is an HTTP client for a JSON imagery-processing backend. It
// implements both ComputeClient and ExportBackend.
type Session struct {
	endpoint string
	region   string
	aoi      string
	key      string
	client   *http.Client
}

// SessionOption tweaks a Session at construction.
type SessionOption func(*Session)

// WithHTTPClient substitutes the underlying HTTP client (used by tests).
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) { s.client = c }
}

// WithAOI sets a separate geometry for coverage statistics. When empty,
// statistics reduce over the session region.
func WithAOI(asset string) SessionOption {
	return func(s *Session) { s.aoi = asset }
}

// NewSession opens a backend session bound to a region asset. The key
// material is passed through opaquely as a bearer credential; obtaining
// and refreshing credentials is the backend operator's concern.
func NewSession(endpoint, keyFile, regionAsset string, opts ...SessionOption) (*Session, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if regionAsset == "" {
		return nil, fmt.Errorf("region asset is required")
	}
	s := &Session{
		endpoint: endpoint,
		region:   regionAsset,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
	if keyFile != "" {
		key, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		s.key = string(bytes.TrimSpace(key))
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type queryRequest struct {
	Region        string    `json:"region"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	CloudCoverMax int       `json:"cloud_cover_max"`
}

type queryResponse struct {
	Count     int      `json:"count"`
	SourceIDs []string `json:"source_ids"`
}

func (s *Session) Query(ctx context.Context, w Window, f Filters) (QueryResult, error) {
	var resp queryResponse
	req := queryRequest{Region: s.region, Start: w.Start, End: w.End, CloudCoverMax: f.CloudCoverMax}
	if err := s.postJSON(ctx, "/v1/collections/query", req, &resp); err != nil {
		return QueryResult{}, err
	}
	return QueryResult{ImageCount: resp.Count, SourceIDs: resp.SourceIDs}, nil
}

type mosaicRequest struct {
	Region         string    `json:"region"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	CloudCoverMax  int       `json:"cloud_cover_max"`
	CoverThreshold float64   `json:"cover_threshold"`
	Artifact       Artifact  `json:"artifact"`
	Band           string    `json:"band"`
}

type handleResponse struct {
	Expr json.RawMessage `json:"expr"`
}

func (s *Session) ComposeMosaic(ctx context.Context, w Window, f Filters, a Artifact, label string) (Handle, error) {
	var resp handleResponse
	req := mosaicRequest{
		Region:         s.region,
		Start:          w.Start,
		End:            w.End,
		CloudCoverMax:  f.CloudCoverMax,
		CoverThreshold: f.CoverThreshold,
		Artifact:       a,
		Band:           label,
	}
	if err := s.postJSON(ctx, "/v1/rasters/mosaic", req, &resp); err != nil {
		return Handle{}, err
	}
	if len(resp.Expr) == 0 {
		return Handle{}, queryErrorf("mosaic", "backend returned empty handle")
	}
	return Handle{Expr: resp.Expr}, nil
}

type meanRequest struct {
	Region string          `json:"region"`
	Expr   json.RawMessage `json:"expr"`
	Band   string          `json:"band"`
}

// statsRegion is the geometry coverage statistics reduce over: the AOI
// when one is configured, otherwise the session region.
func (s *Session) statsRegion() string {
	if s.aoi != "" {
		return s.aoi
	}
	return s.region
}

func (s *Session) MeanValue(ctx context.Context, h Handle, band string) (float64, error) {
	var resp struct {
		Mean float64 `json:"mean"`
	}
	if err := s.postJSON(ctx, "/v1/rasters/mean", meanRequest{Region: s.statsRegion(), Expr: h.Expr, Band: band}, &resp); err != nil {
		return 0, err
	}
	return resp.Mean, nil
}

type stackRequest struct {
	Region string            `json:"region"`
	Exprs  []json.RawMessage `json:"exprs"`
	Labels []string          `json:"labels"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

func (s *Session) StackBands(ctx context.Context, handles []Handle, labels []string, attrs map[string]string) (Handle, error) {
	if len(handles) == 0 {
		return Handle{}, fmt.Errorf("no bands to stack")
	}
	if len(handles) != len(labels) {
		return Handle{}, fmt.Errorf("band/label count mismatch: %d vs %d", len(handles), len(labels))
	}
	exprs := make([]json.RawMessage, len(handles))
	for i, h := range handles {
		exprs[i] = h.Expr
	}
	var resp handleResponse
	if err := s.postJSON(ctx, "/v1/rasters/stack", stackRequest{Region: s.region, Exprs: exprs, Labels: labels, Attrs: attrs}, &resp); err != nil {
		return Handle{}, err
	}
	if len(resp.Expr) == 0 {
		return Handle{}, queryErrorf("stack", "backend returned empty handle")
	}
	return Handle{Expr: resp.Expr}, nil
}

func (s *Session) ConstantRaster(value float64, band string) Handle {
	return ConstantRaster(value, band)
}

type exportRequest struct {
	Region   string          `json:"region"`
	Expr     json.RawMessage `json:"expr"`
	CRS      string          `json:"crs"`
	Scale    int             `json:"scale"`
	DataType string          `json:"dtype"`
}

// Export evaluates the handle and streams the resulting georeferenced
// file to path. The temp-then-rename dance keeps a failed download from
// leaving a truncated file behind.
func (s *Session) Export(ctx context.Context, h Handle, path string, opts ExportOptions) error {
	body, err := json.Marshal(exportRequest{
		Region:   s.region,
		Expr:     h.Expr,
		CRS:      opts.CRS,
		Scale:    opts.Scale,
		DataType: opts.DataType,
	})
	if err != nil {
		return fmt.Errorf("encoding export request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/v1/rasters/export", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building export request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return &QueryError{Op: "export", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return queryErrorf("export", "http %d from %s", resp.StatusCode, req.URL.Path)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return &QueryError{Op: "export", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// postJSON posts a JSON body and decodes a JSON response. Transport
// errors, non-2xx statuses and undecodable responses are all classified
// as the transient QueryError class; encoding failures are not (a body
// that cannot be marshalled is a programming error).
func (s *Session) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return &QueryError{Op: path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return queryErrorf(path, "http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &QueryError{Op: path, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (s *Session) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.key != "" {
		req.Header.Set("Authorization", "Bearer "+s.key)
	}
}
