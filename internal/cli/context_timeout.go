package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// contextWithTimeout bounds a command by d, or by --timeout when it is set.
// Cancelling the command context cancels the result.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	if timeoutOverride > 0 {
		d = timeoutOverride
	}
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, d)
}
