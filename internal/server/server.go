// Package server exposes the local HTTP API used by `memoant serve`.
package server

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/queue"
	"github.com/codebuildervaibhav/memoant/internal/recorder"
	"github.com/codebuildervaibhav/memoant/internal/types"
	"github.com/codebuildervaibhav/memoant/internal/version"
)

// RecordReader reads stored processing records
type RecordReader interface {
	Get(ctx context.Context, fileID string) (*types.ProcessingRecord, error)
	List(ctx context.Context, limit int) ([]*types.ProcessingRecord, error)
	Count(ctx context.Context) (int, error)
}

// RecordingStatus reports the active recording
type RecordingStatus interface {
	Status() (*recorder.Status, error)
}

// Enqueuer accepts jobs for processing
type Enqueuer interface {
	EnqueueJob(job *queue.Job) error
}

// Options configure the API
type Options struct {
	InboxDir      string
	MaxUploadMB   int
	AllowOrigins  string
	RequestLogger bool
}

// Deps are the components behind the API. Logs may be nil.
type Deps struct {
	Records   RecordReader
	Recording RecordingStatus
	Queue     Enqueuer
	Events    *Hub
	Logs      *LogBuffer
	Log       *logrus.Logger
}

// New builds the fiber app with every route registered
func New(deps Deps, opts Options) *fiber.App {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 500
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "http://127.0.0.1, http://localhost"
	}

	app := fiber.New(fiber.Config{
		AppName:               "memoant " + version.Version,
		BodyLimit:             opts.MaxUploadMB * 1024 * 1024,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	if opts.RequestLogger {
		app.Use(fiberlog.New(fiberlog.Config{Output: deps.Log.Writer()}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	records := &RecordsHandler{records: deps.Records, recording: deps.Recording}
	upload := NewUploadHandler(deps.Queue, opts.InboxDir, opts.MaxUploadMB, deps.Log)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": version.Version,
		})
	})
	app.Get("/records", records.List)
	app.Get("/records/:file_id", records.Get)
	app.Get("/recording", records.Recording)
	app.Post("/upload", upload.Handle)

	if deps.Events != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/events", websocket.New(deps.Events.Handle))
	}

	if deps.Logs != nil {
		app.Get("/logs", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"logs": deps.Logs.GetLogs()})
		})
	}

	return app
}

// Addr formats a listen address
func Addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}
