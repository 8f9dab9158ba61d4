package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail string, jobID string, albumURL string, failedItems []string, errorMsg string) error
}
