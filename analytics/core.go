package analytics

import (
	"encoding/json"
	"fmt"

	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/lookup"
)

// Module must be implemented by analytics modules to extract the required information
// and logging activities.
type Module interface {
	LogGatewayObject(*GatewayObject)
	LogBatchObject(*BatchObject)
}

// GatewayObject is the loggable object of one transaction at the gateway endpoint,
// for every action except batchDetails.
type GatewayObject struct {
	TransactionID string
	Action        gwapi.ActionName
	Status        int
	Errors        []error
	Cached        bool
	Fallback      bool
	Response      json.RawMessage
	UserAgent     string
}

// BatchObject is the loggable object of one batchDetails transaction. Per-item
// outcomes ride along so a single log line tells the whole batch story.
type BatchObject struct {
	TransactionID string
	Status        int
	Errors        []error
	PlaceIDs      []string
	Results       []*lookup.DetailsResult
	UserAgent     string
}

func (g *GatewayObject) ToJson() string {
	if content, err := json.Marshal(g); err != nil {
		return fmt.Sprintf("Transactional Logs Error: Gateway object badly formed %v", err)
	} else {
		return string(content)
	}
}

func (b *BatchObject) ToJson() string {
	if content, err := json.Marshal(b); err != nil {
		return fmt.Sprintf("Transactional Logs Error: Batch object badly formed %v", err)
	} else {
		return string(content)
	}
}
