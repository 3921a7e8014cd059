package adapters

import (
	"context"
	"log/slog"

	"hatchseed/internal/slots/ports"
)

// LoggingMediaStore records media releases without touching object storage.
// Deployments that own a bucket replace it with a client-backed store.
type LoggingMediaStore struct {
	logger *slog.Logger
}

func NewLoggingMediaStore(logger *slog.Logger) ports.MediaStore {
	return &LoggingMediaStore{logger: logger}
}

func (m *LoggingMediaStore) Delete(ctx context.Context, mediaRef string) error {
	m.logger.InfoContext(ctx, "media released", "media_ref", mediaRef)
	return nil
}
