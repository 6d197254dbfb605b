// routes_generate.go - Generate- und Scheduler-Handler.
//
// Dieses Modul enthaelt:
// - GenerateHandler mit NDJSON-Streaming pro Denoising-Step
// - SchedulersHandler fuer die Varianten-Auflistung
package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/latentforge/latentforge/api"
	"github.com/latentforge/latentforge/diffusion"
	"github.com/latentforge/latentforge/rng"
)

const maxDimension = 4096

// GenerateHandler runs one generation request. Progress is streamed as
// NDJSON unless the request disables streaming; the final line carries the
// base64 encoded PNGs, with empty strings for safety-withheld images.
func (s *Server) GenerateHandler(c *gin.Context) {
	checkpointStart := time.Now()

	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	if req.Width > maxDimension || req.Height > maxDimension {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width and height must be <= 4096"})
		return
	}

	schedulerKind, err := diffusion.ParseSchedulerKind(req.Scheduler)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rngKind, err := rng.ParseKind(req.RNG)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config := &diffusion.GenerateConfig{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		StepCount:      req.Steps,
		ImageCount:     req.ImageCount,
		Width:          req.Width,
		Height:         req.Height,
		Scheduler:      schedulerKind,
		RNG:            rngKind,
		Seed:           req.Seed,
		GuidanceScale:  req.GuidanceScale,
		Strength:       req.Strength,
		DisableSafety:  req.DisableSafety,
	}

	if req.StartingImage != "" {
		starting, err := decodeImage(req.StartingImage)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		config.Mode = diffusion.ModeImageToImage
		config.StartingImage = starting
	}

	isStreaming := req.Stream == nil || *req.Stream
	contentType := "application/x-ndjson"
	if !isStreaming {
		contentType = "application/json; charset=utf-8"
	}
	c.Header("Content-Type", contentType)

	requestID, _ := c.Get("request_id")
	slog.Info("generate request", "request_id", requestID,
		"scheduler", schedulerKind, "rng", rngKind, "steps", req.Steps)

	var streamStarted bool
	images, err := s.generator.GenerateImages(c.Request.Context(), config, func(record diffusion.ProgressRecord) bool {
		if !isStreaming {
			return true
		}
		streamStarted = true
		writeLine(c, api.GenerateResponse{
			CreatedAt:  time.Now().UTC(),
			Step:       record.Step,
			TotalSteps: record.TotalSteps,
		})
		return c.Request.Context().Err() == nil
	})
	if err != nil {
		status := http.StatusInternalServerError
		var configErr *diffusion.ConfigError
		if errors.As(err, &configErr) {
			status = http.StatusBadRequest
		}
		if streamStarted {
			writeLine(c, gin.H{"error": err.Error()})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	final := api.GenerateResponse{
		CreatedAt:     time.Now().UTC(),
		Done:          true,
		DoneReason:    "stop",
		Images:        encodeImages(images),
		TotalDuration: time.Since(checkpointStart),
	}
	if len(images) == 0 {
		final.DoneReason = "cancelled"
	}

	if !isStreaming {
		c.JSON(http.StatusOK, final)
		return
	}
	writeLine(c, final)
}

// SchedulersHandler lists the supported scheduler variants.
func (s *Server) SchedulersHandler(c *gin.Context) {
	infos := make([]api.SchedulerInfo, 0, 2)
	for _, kind := range diffusion.SchedulerKinds() {
		order := 4
		if kind == diffusion.SchedulerDPMSolverPP {
			order = 2
		}
		infos = append(infos, api.SchedulerInfo{Name: string(kind), Order: order})
	}
	c.JSON(http.StatusOK, gin.H{"schedulers": infos})
}

func writeLine(c *gin.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Writer.Write(append(data, '\n'))
	c.Writer.Flush()
}

// decodeImage parses a base64 encoded image payload.
func decodeImage(encoded string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}

// encodeImages encodes decoded results as base64 PNG, keeping an empty
// string for every nil (safety-withheld) entry.
func encodeImages(images []image.Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		if img == nil {
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			slog.Error("failed to encode result image", "error", err)
			continue
		}
		out[i] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	return out
}
