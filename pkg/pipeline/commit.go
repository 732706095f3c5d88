package pipeline

import (
	"context"

	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/queue"
)

type CommitResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Row         int    `json:"row"`
	CreationID  string `json:"creationId"`
	MediaID     string `json:"mediaId"`
	PublishedAt string `json:"publishedAt"`
}

// Commit publishes the container of the next commit-ready row and stamps published_at.
func (s *Service) Commit(ctx context.Context, sheet string) (res *CommitResult, err error) {
	if s.publisher == nil {
		return nil, &ConfigError{Component: "instagram publisher"}
	}
	sheet = s.sheet(sheet)

	row, lease, err := s.selector.Next(ctx, sheet, OpCommit, queue.CommitReady)
	if err != nil {
		s.observe(ctx, OpCommit, sheet, 0, err, nil)
		return nil, err
	}
	defer release(ctx, OpCommit, lease)
	defer func() {
		var details map[string]interface{}
		if res != nil {
			details = map[string]interface{}{"mediaId": res.MediaID, "publishedAt": res.PublishedAt}
		}
		s.observe(ctx, OpCommit, sheet, row.Index, err, details)
	}()

	creationID := row.Get(queue.FieldCreationID)
	mediaID, err := s.publisher.PublishContainer(ctx, creationID)
	if err != nil {
		return nil, s.fail(ctx, OpCommit, sheet, row.Index, upstreamMessage("Publish failed", err), err)
	}

	publishedAt := queue.FormatTimestamp(s.now())
	if err := s.updater.Apply(ctx, sheet, row.Index, queue.Patch{queue.FieldPublishedAt: publishedAt}); err != nil {
		return nil, &RowError{Row: row.Index, Err: err}
	}

	logger.Log.WithFields(map[string]interface{}{
		"operation":   OpCommit,
		"sheet":       sheet,
		"row":         row.Index,
		"creation_id": creationID,
		"media_id":    mediaID,
	}).Info("row published")

	return &CommitResult{
		Success:     true,
		Message:     "Media published",
		Row:         row.Index,
		CreationID:  creationID,
		MediaID:     mediaID,
		PublishedAt: publishedAt,
	}, nil
}
