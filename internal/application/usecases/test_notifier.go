package usecases

import (
	"context"
	"fmt"

	"github.com/example/alhambra-checker/internal/domain/check"
)

// TestNotifier is the --test-telegram diagnostic: verify the messaging
// channel without launching a browser.
type TestNotifier struct {
	Notifier check.Notifier
}

func (u TestNotifier) Execute(ctx context.Context) error {
	if u.Notifier == nil {
		return fmt.Errorf("notifier is nil")
	}
	return u.Notifier.TestConnection(ctx)
}
