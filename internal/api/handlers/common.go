package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/internal/progress"
	"github.com/screenpilot/screenpilot/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
	Status  int        `json:"upstream_status,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
			Status:  ae.Status,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "Params", "invalid "+name, err))
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// streamEvents runs a progress-reporting pipeline and relays its events as
// Server-Sent Events. The stream always terminates with a single complete or
// error event; a closed client context stops the pipeline via cancellation.
func streamEvents(c *gin.Context, run func(sink progress.Sink) (any, error)) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	events := make(chan progress.Event, 64)

	go func() {
		defer close(events)
		emit := func(ev progress.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		payload, err := run(emit)
		if err != nil {
			emit(progress.Error{Message: err.Error()})
			return
		}
		emit(progress.Complete{Payload: payload})
	}()

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Kind()), ev.Data())
		return true
	})
}
