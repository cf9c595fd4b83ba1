package sheets

import (
	"context"

	"subtrack/internal/core"
)

// Publisher mirrors a user's subscriptions to an external spreadsheet. Each
// call replaces what was previously published for that user.
type Publisher interface {
	PublishSubscriptions(ctx context.Context, userID string, subs []core.Subscription) error
}
