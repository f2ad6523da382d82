package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// RecordsHandler serves stored records and the recording status
type RecordsHandler struct {
	records   RecordReader
	recording RecordingStatus
}

// List returns the newest records first
func (h *RecordsHandler) List(c *fiber.Ctx) error {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_LIMIT", "limit must be a positive integer")
		}
		limit = min(n, maxListLimit)
	}

	recs, err := h.records.List(c.UserContext(), limit)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
	}
	total, err := h.records.Count(c.UserContext())
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
	}
	return c.JSON(fiber.Map{
		"records": recs,
		"total":   total,
	})
}

// Get returns one record by file ID
func (h *RecordsHandler) Get(c *fiber.Ctx) error {
	rec, err := h.records.Get(c.UserContext(), c.Params("file_id"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
	}
	if rec == nil {
		return errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "record not found")
	}
	return c.JSON(rec)
}

// Recording reports whether a capture is running
func (h *RecordsHandler) Recording(c *fiber.Ctx) error {
	if h.recording == nil {
		return c.JSON(fiber.Map{"recording": false})
	}
	st, err := h.recording.Status()
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_STATE", err.Error())
	}
	if st == nil {
		return c.JSON(fiber.Map{"recording": false})
	}
	return c.JSON(fiber.Map{
		"recording": true,
		"status":    st,
	})
}
