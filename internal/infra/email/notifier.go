package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, send: smtp.SendMail, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, jobID, albumURL string, failedItems []string, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := composeFailureMail(n.from, userEmail, jobID, albumURL, failedItems, errorMsg)

	err := n.send(addr, nil, n.from, []string{userEmail}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", userEmail),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("job_id", jobID),
		zap.Int("failed_items", len(failedItems)),
	)
	return nil
}

// composeFailureMail covers both a job that failed outright and a finished
// job with permanently failed items.
func composeFailureMail(from, to, jobID, albumURL string, failedItems []string, errorMsg string) string {
	var b strings.Builder
	b.WriteString("Hello,\r\n\r\n")
	if len(failedItems) == 0 {
		b.WriteString("Your album download job has permanently failed after all retry attempts.\r\n\r\n")
	} else {
		b.WriteString("Your album download job finished, but some items could not be downloaded.\r\n\r\n")
	}
	fmt.Fprintf(&b, "Job ID: %s\r\nAlbum: %s\r\nError: %s\r\n", jobID, albumURL, errorMsg)
	if len(failedItems) > 0 {
		b.WriteString("\r\nFailed items:\r\n")
		for _, item := range failedItems {
			fmt.Fprintf(&b, "  - %s\r\n", item)
		}
	}
	b.WriteString("\r\nPlease submit the album again or contact support.\r\n\r\n-- FIAP X Album Harvester")

	subject := fmt.Sprintf("FIAP X - Album Download Failed [Job %s]", jobID)
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, b.String())
}
