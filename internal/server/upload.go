package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/config"
	"github.com/codebuildervaibhav/memoant/internal/queue"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// UploadHandler saves uploaded recordings into the inbox and queues them
type UploadHandler struct {
	queue     Enqueuer
	inboxDir  string
	maxSizeMB int
	log       *logrus.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(q Enqueuer, inboxDir string, maxSizeMB int, log *logrus.Logger) *UploadHandler {
	return &UploadHandler{
		queue:     q,
		inboxDir:  inboxDir,
		maxSizeMB: maxSizeMB,
		log:       log,
	}
}

// Handle processes the upload request
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_FILE", "No file uploaded")
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE", fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB))
	}
	if !config.IsAudioFile(file.Filename) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT", "Unsupported audio format")
	}

	if err := os.MkdirAll(h.inboxDir, 0755); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}

	// The partial name has no audio extension so a watcher on the inbox
	// ignores it until the rename.
	name := inboxName(file.Filename)
	target := filepath.Join(h.inboxDir, name)
	partial := target + ".partial"
	if err := c.SaveFile(file, partial); err != nil {
		h.log.WithError(err).Error("failed to save uploaded file")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}
	if err := os.Rename(partial, target); err != nil {
		os.Remove(partial)
		h.log.WithError(err).Error("failed to save uploaded file")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}

	job := queue.NewJob(target, queue.SourceUpload)
	err = h.queue.EnqueueJob(job)
	if errors.Is(err, queue.ErrInFlight) {
		// the inbox watcher picked the file up first and owns the job
		h.log.WithField("file", name).Info("upload already queued by the inbox watcher")
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":  "in_flight",
			"file":    name,
			"message": "File uploaded, already queued by the inbox watcher",
		})
	}
	if err != nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "ERR_QUEUE", err.Error())
	}

	h.log.WithFields(logrus.Fields{
		"job":  job.ID,
		"file": name,
		"size": file.Size,
	}).Info("upload queued")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  job.ID,
		"status":  queue.StatusQueued,
		"file":    name,
		"message": "File uploaded successfully, processing started",
	})
}

// inboxName keeps the uploaded base name readable and makes it unique
func inboxName(original string) string {
	base := filepath.Base(original)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSpace(unsafeName.ReplaceAllString(strings.TrimSuffix(base, filepath.Ext(base)), "_"))
	if stem == "" {
		stem = "upload"
	}
	return fmt.Sprintf("%s_%s%s", stem, uuid.New().String()[:8], ext)
}
