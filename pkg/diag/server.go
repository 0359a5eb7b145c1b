package diag

import (
	"context"
	"encoding/json"
	"time"

	fiber "github.com/gofiber/fiber/v3"
	recovermiddleware "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/SampleEnvironment/secop-go/pkg/log"
	"github.com/SampleEnvironment/secop-go/pkg/node"
)

// Server is the read-only diagnostics HTTP surface: descriptive JSON,
// accumulated warnings, and recent update activity for every node in a
// Directory.
type Server struct {
	app      *fiber.App
	dir      *node.Directory
	activity *ActivityStore
}

// New builds a diagnostics server over dir, retaining activityCap samples
// per accessible in its activity ring buffers.
func New(dir *node.Directory, activityCap int) *Server {
	s := &Server{
		dir:      dir,
		activity: NewActivityStore(activityCap),
	}

	app := fiber.New(fiber.Config{
		ServerHeader: "secopd",
	})
	app.Use(recovermiddleware.New())

	app.Get("/nodes", s.handleNodes)
	app.Get("/nodes/:id", s.handleNode)
	app.Get("/nodes/:id/warnings", s.handleWarnings)
	app.Get("/nodes/:id/activity", s.handleActivity)

	s.app = app
	return s
}

// Activity returns the store backing /nodes/:id/activity, so the caller
// can wire it to a scheduler OnUpdate callback via Record.
func (s *Server) Activity() *ActivityStore { return s.activity }

// Run serves addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()
	log.Logger.Info().Str("addr", addr).Msg("diagnostics listening")
	return s.app.Listen(addr)
}

func (s *Server) handleNodes(c fiber.Ctx) error {
	ids := s.dir.Nodes()
	out := make(map[string]json.RawMessage, len(ids))
	for _, id := range ids {
		n := s.dir.Node(id)
		if n == nil {
			continue
		}
		out[id] = n.Describe()
	}
	c.Set("Content-Type", "application/json; charset=utf-8")
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return c.Send(b)
}

func (s *Server) handleNode(c fiber.Ctx) error {
	n := s.dir.Node(c.Params("id"))
	if n == nil {
		return fiber.NewError(fiber.StatusNotFound, "node not found")
	}
	c.Set("Content-Type", "application/json; charset=utf-8")
	return c.Send(n.Describe())
}

func (s *Server) handleWarnings(c fiber.Ctx) error {
	n := s.dir.Node(c.Params("id"))
	if n == nil {
		return fiber.NewError(fiber.StatusNotFound, "node not found")
	}
	warnings := n.Warnings()
	type warningJSON struct {
		Kind    string `json:"kind"`
		Path    string `json:"path"`
		Message string `json:"message"`
	}
	out := make([]warningJSON, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, warningJSON{Kind: w.Kind.String(), Path: w.Path, Message: w.Message})
	}
	c.Set("Content-Type", "application/json; charset=utf-8")
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return c.Send(b)
}

func (s *Server) handleActivity(c fiber.Ctx) error {
	id := c.Params("id")
	if s.dir.Node(id) == nil {
		return fiber.NewError(fiber.StatusNotFound, "node not found")
	}
	snap := s.activity.Snapshot(id)
	c.Set("Content-Type", "application/json; charset=utf-8")
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.Send(b)
}

// RecordUpdate appends specifier's new value to nodeID's activity log. The
// caller (pkg/secop's scheduler OnUpdate wiring) supplies the wall-clock
// time of the poll that produced it.
func (s *Server) RecordUpdate(nodeID, specifier string, value json.RawMessage, at time.Time) {
	s.activity.Record(nodeID, specifier, value, at)
}
