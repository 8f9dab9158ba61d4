package entity

// DownloadTask identifies one plain download within an album run.
type DownloadTask struct {
	ItemIndex    int
	Filename     string
	DownloadLink string
	Dir          string
}

// FailureRecord describes a plain download that exhausted its attempts. A
// first-pass record is eligible for the single album-level retry; a record
// from the retry pass marks a permanent failure.
type FailureRecord struct {
	ItemIndex    int    `json:"item_index"`
	Filename     string `json:"filename"`
	DownloadLink string `json:"download_link"`
}

// Task rebuilds the download task the failure came from.
func (f FailureRecord) Task(dir string) DownloadTask {
	return DownloadTask{ItemIndex: f.ItemIndex, Filename: f.Filename, DownloadLink: f.DownloadLink, Dir: dir}
}

// FailureFor builds the record of a task that exhausted its attempts.
func FailureFor(t DownloadTask) *FailureRecord {
	return &FailureRecord{ItemIndex: t.ItemIndex, Filename: t.Filename, DownloadLink: t.DownloadLink}
}

type ItemOutcome string

const (
	ItemDownloaded ItemOutcome = "DOWNLOADED"
	ItemExtracted  ItemOutcome = "EXTRACTED"
	ItemSkipped    ItemOutcome = "SKIPPED"
	ItemRetryable  ItemOutcome = "RETRYABLE"
	ItemFailed     ItemOutcome = "FAILED"
)

// ItemResult is what each album item task returns to the orchestrator.
type ItemResult struct {
	ItemIndex   int
	ItemPage    string
	Filename    string
	Outcome     ItemOutcome
	Failure     *FailureRecord
	FramesSaved int
	Files       []string
	Err         error
}
