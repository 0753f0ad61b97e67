package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/golang/glog"

	"github.com/placesgw/places-gateway/gwapi"
)

// MaxBatchSize bounds the number of place ids a single batchDetails request may carry.
const MaxBatchSize = 50

// BatchDetails resolves up to MaxBatchSize places concurrently, one goroutine per id,
// through the same cache + fallback path as a single details call. It waits for every
// item before returning. One id's failure (or panic) becomes that item's error entry
// and never cancels or fails its siblings; the result count always equals the input
// count, though the order is unspecified.
//
// Size validation is the dispatcher's job; this coordinator assumes the batch is
// already within bounds.
func (f *Fetcher) BatchDetails(ctx context.Context, placeIDs []string, fields []string) []*DetailsResult {
	f.Metrics.RecordBatchSize(len(placeIDs))

	resultCh := make(chan *DetailsResult, len(placeIDs))
	for _, placeID := range placeIDs {
		// Here we actually resolve the items and collect the outcomes.
		itemRunner := f.recoverSafely(func(placeID string) {
			result, err := f.Details(ctx, gwapi.ActionBatchDetails, placeID, fields)
			if result == nil {
				// Network fault or timeout: the provider never answered, so there is
				// no status to mirror. Report the item as a 504 with the error text.
				result = &DetailsResult{
					PlaceID: placeID,
					Error:   true,
					Status:  http.StatusGatewayTimeout,
					Body:    rawOrString([]byte(err.Error())),
				}
			}
			resultCh <- result
		}, resultCh)
		go itemRunner(placeID) // method arg avoids a race condition on placeID
	}

	results := make([]*DetailsResult, 0, len(placeIDs))
	for i := 0; i < len(placeIDs); i++ {
		results = append(results, <-resultCh)
	}
	return results
}

// recoverSafely wraps a per-item worker so a panic in one item can never kill its
// sibling goroutines or leave the collector waiting forever.
func (f *Fetcher) recoverSafely(inner func(string), resultCh chan *DetailsResult) func(string) {
	return func(placeID string) {
		defer func() {
			if r := recover(); r != nil {
				glog.Errorf("Batch details recovered panic for place %s: %v. Stack trace is: %v",
					placeID, r, string(debug.Stack()))
				f.Metrics.RecordPanic(gwapi.ActionBatchDetails)
				// Let the collector know that there is no data here.
				errBody, _ := json.Marshal(map[string]string{"error": "gateway_exception"})
				resultCh <- &DetailsResult{
					PlaceID: placeID,
					Error:   true,
					Status:  http.StatusInternalServerError,
					Body:    errBody,
				}
			}
		}()
		inner(placeID)
	}
}
