package pipeline

import (
	"context"
	"fmt"

	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/publisher"
	"github.com/reelqueue/platform/pkg/queue"
)

type StageResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	Row              int    `json:"row"`
	CreationID       string `json:"creationId"`
	Caption          string `json:"caption"`
	CaptionGenerated bool   `json:"captionGenerated"`
	Title            string `json:"title"`
}

// Stage creates a media container for the next stage-ready row. A missing
// caption is generated and written before the platform is called.
func (s *Service) Stage(ctx context.Context, sheet string) (res *StageResult, err error) {
	if s.publisher == nil {
		return nil, &ConfigError{Component: "instagram publisher"}
	}
	sheet = s.sheet(sheet)

	row, lease, err := s.selector.Next(ctx, sheet, OpStage, queue.StageReady)
	if err != nil {
		s.observe(ctx, OpStage, sheet, 0, err, nil)
		return nil, err
	}
	defer release(ctx, OpStage, lease)
	defer func() {
		var details map[string]interface{}
		if res != nil {
			details = map[string]interface{}{"creationId": res.CreationID, "captionGenerated": res.CaptionGenerated}
		}
		s.observe(ctx, OpStage, sheet, row.Index, err, details)
	}()

	log := logger.Log.WithFields(map[string]interface{}{
		"operation": OpStage,
		"sheet":     sheet,
		"row":       row.Index,
	})

	mediaURL := row.Get(queue.FieldMediaURL)
	title := row.Get(queue.FieldTitle)
	var missing []string
	if mediaURL == "" {
		missing = append(missing, string(queue.FieldMediaURL))
	}
	if title == "" {
		missing = append(missing, string(queue.FieldTitle))
	}
	if len(missing) > 0 {
		verr := &ValidationError{Missing: missing}
		return nil, s.fail(ctx, OpStage, sheet, row.Index, "Validation failed: "+verr.Error(), verr)
	}

	caption := row.Get(queue.FieldCaption)
	generated := false
	if caption == "" {
		// Only rows without a caption need the generator, so this check cannot
		// run before selection. The row is left untouched and the deferred
		// release frees its claim.
		if s.captioner == nil {
			return nil, &ConfigError{Component: "caption generator"}
		}
		caption, err = s.captioner.Generate(ctx, title, row.Get(queue.FieldDescription))
		if err != nil {
			return nil, s.fail(ctx, OpStage, sheet, row.Index, fmt.Sprintf("Caption generation failed: %v", err), err)
		}
		generated = true
		if err := s.updater.Apply(ctx, sheet, row.Index, queue.Patch{queue.FieldCaption: caption}); err != nil {
			return nil, &RowError{Row: row.Index, Err: err}
		}
		log.Info("caption generated and saved")
	}

	creationID, err := s.publisher.CreateContainer(ctx, publisher.ContainerRequest{
		MediaType: publisher.MediaTypeReels,
		Caption:   caption,
		CoverURL:  publisher.CoverURL(mediaURL),
		VideoURL:  mediaURL,
	})
	if err != nil {
		return nil, s.fail(ctx, OpStage, sheet, row.Index, upstreamMessage("Container creation failed", err), err)
	}

	if err := s.updater.Apply(ctx, sheet, row.Index, queue.Patch{queue.FieldCreationID: creationID}); err != nil {
		return nil, &RowError{Row: row.Index, Err: err}
	}
	log.WithField("creation_id", creationID).Info("row staged")

	return &StageResult{
		Success:          true,
		Message:          "Media container created",
		Row:              row.Index,
		CreationID:       creationID,
		Caption:          caption,
		CaptionGenerated: generated,
		Title:            title,
	}, nil
}
