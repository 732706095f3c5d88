package ingest

import (
	"encoding/xml"
	"errors"
	"html"
	"regexp"
	"strings"
)

var ErrMissingVideoID = errors.New("notification carries no video id")

// Notification is the part of a YouTube push notification the queue needs.
type Notification struct {
	VideoID     string
	ChannelID   string
	Title       string
	Link        string
	Description string
	Thumbnail   string
	Published   string
	Updated     string
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID   string `xml:"videoId"`
	ChannelID string `xml:"channelId"`
	Title     string `xml:"title"`
	Links     []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Group     struct {
		Description string `xml:"description"`
		Thumbnail   struct {
			URL string `xml:"url,attr"`
		} `xml:"thumbnail"`
	} `xml:"group"`
}

var (
	videoIDPattern = regexp.MustCompile(`<yt:videoId>\s*([^<\s]+)\s*</yt:videoId>`)
	titlePattern   = regexp.MustCompile(`(?s)<entry>.*?<title>([^<]*)</title>`)
)

// ParseNotification reads the first entry of an Atom notification. When the
// document does not parse, the video id and title are recovered by pattern.
func ParseNotification(body []byte) (Notification, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil || len(feed.Entries) == 0 {
		return scrape(body)
	}

	e := feed.Entries[0]
	n := Notification{
		VideoID:     strings.TrimSpace(e.VideoID),
		ChannelID:   strings.TrimSpace(e.ChannelID),
		Title:       strings.TrimSpace(e.Title),
		Description: strings.TrimSpace(e.Group.Description),
		Thumbnail:   strings.TrimSpace(e.Group.Thumbnail.URL),
		Published:   strings.TrimSpace(e.Published),
		Updated:     strings.TrimSpace(e.Updated),
	}
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			n.Link = l.Href
			break
		}
	}
	if n.VideoID == "" {
		return n, ErrMissingVideoID
	}
	return n, nil
}

func scrape(body []byte) (Notification, error) {
	var n Notification
	m := videoIDPattern.FindSubmatch(body)
	if m == nil {
		return n, ErrMissingVideoID
	}
	n.VideoID = string(m[1])
	if t := titlePattern.FindSubmatch(body); t != nil {
		n.Title = html.UnescapeString(strings.TrimSpace(string(t[1])))
	}
	return n, nil
}
