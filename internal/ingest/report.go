package ingest

import "time"

// DocumentReport holds per-source-document ingestion counts.
type DocumentReport struct {
	Embedded  int      `json:"embedded"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// Report is the outcome of one ingestion run over a collection. Per-record
// embedding failures are aggregated here, never raised as errors; only
// infrastructure failures abort a run early.
type Report struct {
	Collection string                     `json:"collection"`
	Documents  map[string]*DocumentReport `json:"documents"`
	Embedded   int                        `json:"embedded"`
	Skipped    int                        `json:"skipped"`
	Failed     int                        `json:"failed"`
	FailedIDs  []string                   `json:"failed_ids,omitempty"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
}

func newReport(collection string) *Report {
	return &Report{
		Collection: collection,
		Documents:  make(map[string]*DocumentReport),
		StartedAt:  time.Now().UTC(),
	}
}

func (r *Report) doc(path string) *DocumentReport {
	d, ok := r.Documents[path]
	if !ok {
		d = &DocumentReport{}
		r.Documents[path] = d
	}
	return d
}

func (r *Report) addEmbedded(path string, n int) {
	r.doc(path).Embedded += n
	r.Embedded += n
}

func (r *Report) addSkipped(path string, n int) {
	r.doc(path).Skipped += n
	r.Skipped += n
}

func (r *Report) addFailed(path, recordID string) {
	d := r.doc(path)
	d.Failed++
	d.FailedIDs = append(d.FailedIDs, recordID)
	r.Failed++
	r.FailedIDs = append(r.FailedIDs, recordID)
}

func (r *Report) finish() *Report {
	r.FinishedAt = time.Now().UTC()
	return r
}
