// Package notify delivers operational alerts about pipeline executions.
package notify

import (
	"context"
	"fmt"
)

// Noop discards every notification. Used when no topic is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string, string) error { return nil }

// ExecutionNotice renders the alert for a workflow execution that ended in a
// non-success status. The message carries the console link to the execution
// so the on-call can jump straight to it.
func ExecutionNotice(status, region, executionARN string) (subject, message string) {
	subject = fmt.Sprintf("[Action Required] Crawler workflow execution got %s status", status)
	message = fmt.Sprintf(
		"https://%s.console.aws.amazon.com/states/home?region=%s#/v2/executions/details/%s",
		region, region, executionARN,
	)
	return subject, message
}
