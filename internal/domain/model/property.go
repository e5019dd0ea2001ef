package model

import (
	"errors"
	"strings"
	"time"
)

// Property is one SUUMO listing being watched by at least one user.
type Property struct {
	ID                       string    `json:"id"                                   db:"id"`
	URL                      string    `json:"url"                                  db:"url"`
	Name                     string    `json:"name"                                 db:"name"`
	IsActive                 bool      `json:"is_active"                            db:"is_active"`
	LargePropertyDescription *string   `json:"large_property_description,omitempty" db:"large_property_description"`
	SmallPropertyDescription *string   `json:"small_property_description,omitempty" db:"small_property_description"`
	ImageURLs                []string  `json:"image_urls"                           db:"image_urls"`
	CreatedAt                time.Time `json:"created_at"                           db:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"                           db:"updated_at"`
}

// suumoURLPrefix is the only listing host this system scrapes.
const suumoURLPrefix = "https://suumo.jp"

// ValidateListingURL rejects URLs outside the supported listing host.
func ValidateListingURL(url string) error {
	if !strings.HasPrefix(url, suumoURLPrefix) {
		return errors.New("url must start with " + suumoURLPrefix)
	}
	return nil
}

// ValidateLineUserID enforces the LINE platform user id format.
func ValidateLineUserID(id string) error {
	if !strings.HasPrefix(id, "U") {
		return errors.New("line_user_id must start with U")
	}
	return nil
}

// UserProperty links a LINE user to a property they watch.
type UserProperty struct {
	ID               string     `json:"id"                           db:"id"`
	LineUserID       string     `json:"line_user_id"                 db:"line_user_id"`
	PropertyID       string     `json:"property_id"                  db:"property_id"`
	LastCheckedAt    *time.Time `json:"last_checked_at,omitempty"    db:"last_checked_at"`
	FirstSucceededAt *time.Time `json:"first_succeeded_at,omitempty" db:"first_succeeded_at"`
	LastSucceededAt  *time.Time `json:"last_succeeded_at,omitempty"  db:"last_succeeded_at"`
	CreatedAt        time.Time  `json:"created_at"                   db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"                   db:"updated_at"`
}

// User is a LINE follower of the bot.
type User struct {
	ID         string    `json:"id"           db:"id"`
	LineUserID string    `json:"line_user_id" db:"line_user_id"`
	CreatedAt  time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"   db:"updated_at"`
}

// Listing is the scraped state of one property page. Shape is owned by the
// worker pipeline; the trace store persists it opaquely in the result field.
type Listing struct {
	Name                     string   `json:"name"`
	URL                      string   `json:"url"`
	IsActive                 bool     `json:"is_active"`
	LargePropertyDescription string   `json:"large_property_description,omitempty"`
	SmallPropertyDescription string   `json:"small_property_description,omitempty"`
	ImageURLs                []string `json:"image_urls,omitempty"`
}
