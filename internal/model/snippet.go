// Package model defines the data structures shared by the service and
// storage layers.
package model

import "time"

// Snippet is a saved piece of code that can be run on demand.
//
// Language is the free-form tag the snippet was saved with ("js", "Python",
// "html", ...). It is stored verbatim, so a snippet tagged with a language
// the engine cannot run still loads and degrades to the unsupported result.
type Snippet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Language    string    `json:"language"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
