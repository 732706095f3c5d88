package models

import "time"

// Event is the envelope carried on every kafka topic.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // video.ingested, media.ready
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventVideoIngested = "video.ingested"
	EventMediaReady    = "media.ready"
)

// VideoJob is handed to the external processing service after ingest.
type VideoJob struct {
	VideoID   string `json:"video_id"`
	SourceURL string `json:"source_url"`
	Title     string `json:"title,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
}

func (j VideoJob) Data() map[string]interface{} {
	return map[string]interface{}{
		"video_id":   j.VideoID,
		"source_url": j.SourceURL,
		"title":      j.Title,
		"sheet":      j.Sheet,
	}
}

// MediaReady announces that processing produced a hosted media file for a video.
type MediaReady struct {
	VideoID   string `json:"video_id,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	MediaURL  string `json:"media_url"`
	Sheet     string `json:"sheet,omitempty"`
}

// MediaReadyFromEvent reads a MediaReady out of an event's data map.
func MediaReadyFromEvent(e Event) MediaReady {
	str := func(key string) string {
		if v, ok := e.Data[key].(string); ok {
			return v
		}
		return ""
	}
	return MediaReady{
		VideoID:   str("video_id"),
		SourceURL: str("source_url"),
		MediaURL:  str("media_url"),
		Sheet:     str("sheet"),
	}
}
