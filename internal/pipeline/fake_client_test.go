package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"vegcover/internal/remote"
)

// fakeClient is an in-memory ComputeClient keyed by window start date.
type fakeClient struct {
	mu        sync.Mutex
	images    map[string]int
	sources   map[string][]string
	queryErr  map[string]error
	mosaicErr map[string]error
	mean      float64
	meanErr   error
	stackErr  error

	stackedLabels [][]string
	stackedAttrs  []map[string]string
}

func windowKey(w remote.Window) string { return w.Start.Format("2006-01-02") }

func (f *fakeClient) Query(_ context.Context, w remote.Window, _ remote.Filters) (remote.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := windowKey(w)
	if err := f.queryErr[key]; err != nil {
		return remote.QueryResult{}, err
	}
	return remote.QueryResult{ImageCount: f.images[key], SourceIDs: f.sources[key]}, nil
}

func (f *fakeClient) ComposeMosaic(_ context.Context, w remote.Window, _ remote.Filters, a remote.Artifact, label string) (remote.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mosaicErr[windowKey(w)]; err != nil {
		return remote.Handle{}, err
	}
	return mosaicHandle(a, label), nil
}

func (f *fakeClient) MeanValue(context.Context, remote.Handle, string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mean, f.meanErr
}

func (f *fakeClient) StackBands(_ context.Context, handles []remote.Handle, labels []string, attrs map[string]string) (remote.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stackErr != nil {
		return remote.Handle{}, f.stackErr
	}
	if len(handles) != len(labels) {
		return remote.Handle{}, fmt.Errorf("band/label count mismatch")
	}
	recorded := make([]string, len(labels))
	copy(recorded, labels)
	f.stackedLabels = append(f.stackedLabels, recorded)
	f.stackedAttrs = append(f.stackedAttrs, attrs)
	expr, _ := json.Marshal(map[string]any{"op": "stack", "bands": recorded})
	return remote.Handle{Expr: expr}, nil
}

func (f *fakeClient) ConstantRaster(value float64, band string) remote.Handle {
	return remote.ConstantRaster(value, band)
}

func mosaicHandle(a remote.Artifact, label string) remote.Handle {
	expr, _ := json.Marshal(map[string]any{"op": "mosaic", "artifact": string(a), "band": label})
	return remote.Handle{Expr: expr}
}
