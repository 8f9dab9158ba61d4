package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifyFailureListsItems(t *testing.T) {
	n := NewSMTPNotifier("mailhog", 1025, "noreply@fiapx.local", zap.NewNop())
	var gotAddr string
	var gotTo []string
	var body string
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, body = addr, to, string(msg)
		return nil
	}

	err := n.NotifyFailure(context.Background(), "user@example.com", "job-1",
		"https://bunkr.example/a/alb1", []string{"a.jpg", "b.mp4"}, "2 of 5 items failed")
	require.NoError(t, err)

	assert.Equal(t, "mailhog:1025", gotAddr)
	assert.Equal(t, []string{"user@example.com"}, gotTo)
	assert.Contains(t, body, "Subject: FIAP X - Album Download Failed [Job job-1]")
	assert.Contains(t, body, "some items could not be downloaded")
	assert.Contains(t, body, "  - a.jpg\r\n  - b.mp4\r\n")
	assert.Contains(t, body, "Album: https://bunkr.example/a/alb1")
}

func TestNotifyFailureWholeJob(t *testing.T) {
	body := composeFailureMail("from@x", "to@x", "job-2", "https://bunkr.example/a/x", nil, "max retries exceeded")
	assert.Contains(t, body, "permanently failed after all retry attempts")
	assert.NotContains(t, body, "Failed items")
	assert.Contains(t, body, "Error: max retries exceeded")
}

func TestNotifyFailureWrapsSendError(t *testing.T) {
	n := NewSMTPNotifier("mailhog", 1025, "noreply@fiapx.local", zap.NewNop())
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	err := n.NotifyFailure(context.Background(), "u@x", "job-3", "https://bunkr.example/a/x", nil, "boom")
	assert.ErrorContains(t, err, "send email: connection refused")
}
