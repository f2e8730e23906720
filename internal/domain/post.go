package domain

import "time"

const SourceTypeDiscord = "discord"

type Source struct {
	ID         int64     `db:"id" json:"id"`
	Type       string    `db:"type" json:"type"`
	Name       string    `db:"name" json:"name"`
	Identifier string    `db:"identifier" json:"identifier"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	LastCursor *string   `db:"last_cursor" json:"lastFetchedExternalId"`
}

type Post struct {
	ID           int64     `db:"id" json:"id"`
	SourceID     int64     `db:"source_id" json:"sourceId"`
	ExternalID   *string   `db:"external_id" json:"externalId"`
	Content      string    `db:"content" json:"content"`
	Author       string    `db:"author" json:"author"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	Summary      *string   `db:"summary" json:"summary"`
	PodcastPath  *string   `db:"podcast_path" json:"podcastUrl"`
	ScaffoldPath *string   `db:"scaffold_path" json:"scaffoldZipUrl"`
	IsRead       bool      `db:"is_read" json:"isRead"`
	IsSaved      bool      `db:"is_saved" json:"isSaved"`

	Source *Source `db:"-" json:"source,omitempty"`
	Tags   []Tag   `db:"-" json:"tags,omitempty"`
}

type Tag struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// RawItem is one item fetched from an external source, before it is stored.
type RawItem struct {
	ExternalID string
	Content    string
	Author     string
	Timestamp  time.Time
}
