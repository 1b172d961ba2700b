package logsink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
)

func TestNotifierMasksPhone(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := n.Notify(context.Background(), models.Notification{
		Type:          models.EventSubmitted,
		ApplicationID: id.ApplicationID(uuid.New()),
		PhoneNumber:   "010-1234-5678",
		Status:        models.StatusSubmitted,
		OccurredAt:    time.Now(),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"event":"enrollment.submitted"`)
	assert.Contains(t, out, `"phone_number":"***-****-5678"`)
	assert.NotContains(t, out, "010-1234")
}

func TestProvisionerLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	p := NewProvisioner(slog.New(slog.NewJSONHandler(&buf, nil)))
	app := models.Rehydrate(models.Record{
		ID:       id.ApplicationID(uuid.New()),
		Business: models.Business{Number: "123-45-67890"},
		Status:   models.StatusApproved,
	})

	require.NoError(t, p.Provision(context.Background(), app))
	assert.Contains(t, buf.String(), "123-45-67890")
	assert.Contains(t, buf.String(), app.ID().String())
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*******5678", maskPhone("01012345678"))
	assert.Equal(t, "123", maskPhone("123"))
	assert.Equal(t, "", maskPhone(""))
}
