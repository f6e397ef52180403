package providers

import (
	"context"

	"basement-monitor/internal/logging"
	"basement-monitor/internal/utils"
)

const maxAttempts = 3

func retry(ctx context.Context, logger *logging.Logger, fn func() error) error {
	return utils.Retry(ctx, logger, maxAttempts, retryDelay, fn)
}
