// internal/models/models.go
package models

import (
	"strings"
	"time"
)

const StatusOriginal = "original"

type HistoryEntry struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	URL       string `json:"url,omitempty"`
}

type PhotoTag struct {
	Name string `json:"name"`
}

type Photo struct {
	ID           int64          `json:"id"`
	Album        string         `json:"album"`
	OriginalName string         `json:"originalName"`
	URL          string         `json:"url"`
	LastChange   string         `json:"lastChange"`
	History      []HistoryEntry `json:"history"`
	Tags         []PhotoTag     `json:"tags"`
}

// NewPhoto builds a photo with its initial "original" history entry.
func NewPhoto(id int64, album, originalName, url string, createdAt time.Time) Photo {
	return Photo{
		ID:           id,
		Album:        album,
		OriginalName: originalName,
		URL:          url,
		LastChange:   StatusOriginal,
		History: []HistoryEntry{
			{Status: StatusOriginal, Timestamp: createdAt.UnixMilli()},
		},
		Tags: []PhotoTag{},
	}
}

// HasTag compares tag names case-insensitively.
func (p *Photo) HasTag(name string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// FindHistory returns the first entry with the given status.
func (p *Photo) FindHistory(status string) (HistoryEntry, bool) {
	for _, h := range p.History {
		if h.Status == status {
			return h, true
		}
	}
	return HistoryEntry{}, false
}

type PhotoTags struct {
	ID   int64      `json:"id"`
	Tags []PhotoTag `json:"tags"`
}

type Tag struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

type ProfileImage struct {
	Name string `json:"name"`
	HTTP string `json:"http"`
}

type User struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Lastname       string         `json:"lastname"`
	Email          string         `json:"email"`
	Password       string         `json:"password"`
	CreatedAt      time.Time      `json:"createdAt"`
	ProfilePicture *string        `json:"profilePicture"`
	ProfileArray   []ProfileImage `json:"profileArray,omitempty"`
	Verified       bool           `json:"verified"`
}

// PublicUser is a User without its password hash.
type PublicUser struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Lastname       string         `json:"lastname"`
	Email          string         `json:"email"`
	CreatedAt      time.Time      `json:"createdAt"`
	ProfilePicture *string        `json:"profilePicture"`
	ProfileArray   []ProfileImage `json:"profileArray,omitempty"`
	Verified       bool           `json:"verified"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Name:           u.Name,
		Lastname:       u.Lastname,
		Email:          u.Email,
		CreatedAt:      u.CreatedAt,
		ProfilePicture: u.ProfilePicture,
		ProfileArray:   u.ProfileArray,
		Verified:       u.Verified,
	}
}

type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

type ImageData struct {
	Data        []byte
	ContentType string
}

// FilterRequest names a photo and, in LastChange, the operation to apply.
// The remaining fields are operation parameters.
type FilterRequest struct {
	ID         int64    `json:"id"`
	LastChange string   `json:"lastChange"`
	Angle      *float64 `json:"angle,omitempty"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
	Left       int      `json:"left,omitempty"`
	Top        int      `json:"top,omitempty"`
	R          *int     `json:"r,omitempty"`
	G          *int     `json:"g,omitempty"`
	B          *int     `json:"b,omitempty"`
	Format     string   `json:"format,omitempty"`
}
