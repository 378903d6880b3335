package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "app error",
			err:        domain.ErrDuplicateLabel,
			wantStatus: 409,
			wantCode:   "DUPLICATE_LABEL",
		},
		{
			name:       "wrapped app error",
			err:        fmt.Errorf("register: %w", domain.ErrRegistration.WithError(errors.New("no face"))),
			wantStatus: domain.ErrRegistration.StatusCode,
			wantCode:   domain.ErrRegistration.Code,
		},
		{
			name:       "fiber error",
			err:        fiber.ErrUpgradeRequired,
			wantStatus: fiber.StatusUpgradeRequired,
			wantCode:   "HTTP_ERROR",
		},
		{
			name:       "cancelled",
			err:        context.Canceled,
			wantStatus: StatusClientClosedRequest,
			wantCode:   "REQUEST_CANCELLED",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: 500,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{
				ErrorHandler: ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil))),
			})
			app.Get("/", func(c *fiber.Ctx) error {
				return tt.err
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	app := fiber.New()
	app.Use(Recover(logger))
	app.Get("/", func(c *fiber.Ctx) error {
		panic("kaboom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	app := fiber.New()
	app.Use(Logger(logger))
	app.Get("/missing", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	_, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/missing")
	assert.Contains(t, out, "status=404")
}

func TestRecover_UsesErrorHandler(t *testing.T) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(discard)})
	app.Use(Recover(discard))
	app.Get("/", func(c *fiber.Ctx) error {
		panic("kaboom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, 500, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}

func TestLogger_LogsRenderedErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(discard)})
	app.Use(Logger(logger))
	app.Get("/faces/:label", func(c *fiber.Ctx) error {
		return domain.ErrIdentityNotFound
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/faces/ghost", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=404")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(200))
	assert.Equal(t, slog.LevelWarn, levelFor(429))
	assert.Equal(t, slog.LevelError, levelFor(503))
}
