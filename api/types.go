// types.go - Request- und Response-Typen der latentforge API.
//
// Dieses Modul enthaelt:
// - GenerateRequest und GenerateResponse
// - SchedulerInfo fuer die Scheduler-Auflistung
// - StatusError fuer HTTP-Fehler
package api

import (
	"fmt"
	"time"
)

// GenerateRequest describes one image generation call to the server.
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`

	Steps      int `json:"steps,omitempty"`
	ImageCount int `json:"image_count,omitempty"`
	Width      int `json:"width,omitempty"`
	Height     int `json:"height,omitempty"`

	Scheduler string `json:"scheduler,omitempty"`
	RNG       string `json:"rng,omitempty"`
	Seed      uint64 `json:"seed,omitempty"`

	// GuidanceScale is a pointer so an explicit 0 is carried over the wire
	// instead of being dropped by omitempty.
	GuidanceScale *float32 `json:"guidance_scale,omitempty"`

	// StartingImage is a base64 encoded PNG for image-to-image mode.
	StartingImage string  `json:"starting_image,omitempty"`
	Strength      float32 `json:"strength,omitempty"`

	DisableSafety bool  `json:"disable_safety,omitempty"`
	Stream        *bool `json:"stream,omitempty"`
}

// GenerateResponse is one streamed progress line or the final result. For
// progress lines Step/TotalSteps are set; the final line has Done true and
// one base64 PNG per requested image, with empty strings for results the
// safety checker withheld.
type GenerateResponse struct {
	CreatedAt  time.Time `json:"created_at"`
	Step       int       `json:"step,omitempty"`
	TotalSteps int       `json:"total_steps,omitempty"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`
	Images     []string  `json:"images,omitempty"`

	TotalDuration time.Duration `json:"total_duration,omitempty"`
}

// SchedulerInfo describes one available scheduler variant.
type SchedulerInfo struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// StatusError is the error type for non-2xx responses.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the latentforge server logs for details"
	}
}
