package service

// BatchItem is the outcome for one ID of a bulk operation.
type BatchItem struct {
	ID        string `json:"id"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`

	// Err is the failure, kept for callers that need errors.Is.
	Err error `json:"-"`
}

// BatchReport summarizes a best-effort bulk operation.
// Items are in request order.
type BatchReport struct {
	Requested int         `json:"requested"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

func newBatchReport(n int) *BatchReport {
	return &BatchReport{Requested: n, Items: make([]BatchItem, 0, n)}
}

func (r *BatchReport) record(id string, err error) {
	item := BatchItem{ID: id, Succeeded: err == nil, Err: err}
	if err != nil {
		item.Error = err.Error()
		r.Failed++
	} else {
		r.Succeeded++
	}
	r.Items = append(r.Items, item)
}
