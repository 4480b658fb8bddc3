package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

const problemContentType = "application/problem+json"

// Problem is an RFC 7807 error body.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func newProblem(status int, title, detail string) Problem {
	return Problem{
		Type:   fmt.Sprintf("https://httpstatuses.com/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

var (
	problemInvalidRequest = newProblem(fiber.StatusBadRequest,
		"Invalid request", "The request contained invalid parameters")
	problemNotFound = newProblem(fiber.StatusNotFound,
		"Resource not found", "The resource could not be found")
	problemUnavailable = newProblem(fiber.StatusServiceUnavailable,
		"Service unavailable", "Service is currently unavailable")
	problemTimeout = newProblem(fiber.StatusGatewayTimeout,
		"Provider timeout", "The weather provider did not respond in time")
	problemBadGateway = newProblem(fiber.StatusBadGateway,
		"Invalid provider response", "Received an unexpected response from the weather provider")
	problemProviderFailure = newProblem(fiber.StatusInternalServerError,
		"Unexpected error", "An unexpected error occurred while processing the weather request")
	problemUnexpected = newProblem(fiber.StatusInternalServerError,
		"Unexpected error", "An unexpected error occurred while processing your request.")
)

// problemForKind maps each provider failure kind to the response shown to
// callers. Vendor messages never reach the body.
func problemForKind(kind providers.Kind) Problem {
	switch kind {
	case providers.KindInvalidRequest:
		return problemInvalidRequest
	case providers.KindNotFound:
		return problemNotFound
	case providers.KindAuthFailure:
		// credential failures are an operator problem, not the caller's
		return problemUnavailable
	case providers.KindTimeout:
		return problemTimeout
	case providers.KindRateLimitedOrServerError, providers.KindMalformedResponse, providers.KindUnexpectedResponse:
		return problemBadGateway
	case providers.KindTransport:
		return problemProviderFailure
	}
	return problemUnexpected
}

// problemFor maps any handler error to a Problem.
func problemFor(err error) Problem {
	if kind, ok := providers.KindOf(err); ok {
		return problemForKind(kind)
	}

	var fe *fiber.Error
	switch {
	case errors.Is(err, weather.ErrInvalidArgument):
		return problemInvalidRequest
	case errors.As(err, &fe):
		return newProblem(fe.Code, statusTitle(fe.Code), fe.Message)
	}
	return problemUnexpected
}

func statusTitle(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return problemInvalidRequest.Title
	case fiber.StatusNotFound:
		return problemNotFound.Title
	}
	if t := http.StatusText(code); t != "" {
		return t
	}
	return problemUnexpected.Title
}

func writeProblem(c *fiber.Ctx, p Problem) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, problemContentType)
	return c.Status(p.Status).Send(body)
}

// ErrorHandler renders every error returned from a handler as problem+json.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return writeProblem(c, problemFor(err))
}
