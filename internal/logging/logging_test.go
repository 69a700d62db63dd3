package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithLogger(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	assert.Nil(t, FromContext(context.Background()))
	assert.Equal(t, context.Background(), ContextWithLogger(context.Background(), nil))
	assert.Same(t, slog.Default(), OrDefault(nil))
}

func TestScoped(t *testing.T) {
	var fallbackOut, requestOut bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&fallbackOut, nil))
	request := slog.New(slog.NewJSONHandler(&requestOut, nil)).With("request_id", 7)

	Scoped(context.Background(), fallback, "service", "BookingService", "CreateBooking", "room_id", "room-1").Info("done")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(fallbackOut.Bytes(), &entry))
	assert.Equal(t, "BookingService", entry["service"])
	assert.Equal(t, "CreateBooking", entry["operation"])
	assert.Equal(t, "room-1", entry["room_id"])

	ctx := ContextWithLogger(context.Background(), request)
	Scoped(ctx, fallback, "handler", "RoomHandler", "").Info("done")
	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(requestOut.Bytes(), &entry))
	assert.Equal(t, "RoomHandler", entry["handler"])
	assert.EqualValues(t, 7, entry["request_id"])
	assert.NotContains(t, entry, "operation")
}
