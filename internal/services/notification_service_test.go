package services_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/events"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/testutil"
)

func TestNotificationStatusFilter(t *testing.T) {
	mailer := &recordingMailer{}
	svc := services.NewNotificationService(mailer, "atelier@bigdiamond.pl", "https://bigdiamond.pl/projekt/")
	ctx := context.Background()
	id := uuid.New()

	for _, status := range models.ProjectStatuses {
		svc.Dispatch(ctx, events.Event{Type: events.TypeDesignStatusChanged, Payload: services.ProjectEvent{
			ProjectID:     id,
			CustomerName:  "Anna",
			CustomerEmail: "anna@example.com",
			Status:        status,
		}})
	}

	require.Len(t, mailer.sent, 3)
	for _, msg := range mailer.sent {
		assert.Equal(t, "anna@example.com", msg.To)
		assert.Contains(t, msg.HTML, "https://bigdiamond.pl/projekt/"+id.String())
	}

	// No address, nothing to send.
	svc.Dispatch(ctx, events.Event{Type: events.TypeDesignStatusChanged, Payload: services.ProjectEvent{
		ProjectID: id,
		Status:    models.ProjectStatusConceptReady,
	}})
	assert.Len(t, mailer.sent, 3)
}

func TestNotificationRingConfirmation(t *testing.T) {
	mailer := &recordingMailer{}
	bus := events.NewBus()
	services.NewNotificationService(mailer, "", "").Subscribe(bus)

	cfg := sampleConfiguration("abc123")
	bus.Publish(context.Background(), events.TypeRingConfigurationCompleted, *cfg)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "anna@example.com", msg.To)
	assert.Contains(t, msg.Subject, "abc123")
	assert.Contains(t, msg.HTML, "5200.00")
	assert.Contains(t, msg.HTML, "Złoto 585")

	cfg.Customer.Email = ""
	bus.Publish(context.Background(), events.TypeRingConfigurationCompleted, cfg)
	assert.Len(t, mailer.sent, 1)
}

func TestNotificationEscapesCustomerInput(t *testing.T) {
	mailer := &recordingMailer{}
	svc := services.NewNotificationService(mailer, "", "")

	svc.Dispatch(context.Background(), events.Event{Type: events.TypeCustomDesignIntake, Payload: services.ProjectEvent{
		ProjectID:     uuid.New(),
		CustomerName:  "<img src=x>",
		CustomerEmail: "anna@example.com",
	}})

	require.Len(t, mailer.sent, 1, "no admin address configured")
	assert.NotContains(t, mailer.sent[0].HTML, "<img src=x>")
}

func TestSecurityRejectionAlertsAdmin(t *testing.T) {
	db := testutil.NewTestDB(t)
	bus := events.NewBus()
	mailer := &recordingMailer{}
	services.NewNotificationService(mailer, "atelier@bigdiamond.pl", "").Subscribe(bus)

	security := services.NewSecurityService(db, bus, true, clock.NewMockClock(testutil.FixedTime))
	security.RecordRejection(context.Background(), services.WebhookRequest{
		Body:     []byte(`{"config_id":"abc123"}`),
		ClientIP: "203.0.113.7",
		Path:     "/api/v1/rings/webhook",
		Headers:  map[string]string{"X-Webhook-Signature": "sha256=deadbeef", "User-Agent": "curl"},
	}, services.ReasonInvalidSignature)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "atelier@bigdiamond.pl", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].HTML, "203.0.113.7")

	list, total, err := security.ListEvents(context.Background(), services.ReasonInvalidSignature, defaultPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "/api/v1/rings/webhook", list[0].Path)
	assert.Equal(t, testutil.FixedTime, list[0].OccurredAt.UTC())
}

func TestSecurityRejectionStoresValidUTF8(t *testing.T) {
	db := testutil.NewTestDB(t)
	security := services.NewSecurityService(db, nil, false, clock.NewMockClock(testutil.FixedTime))

	const limit = 64 << 10
	// An invalid byte and a two-byte rune straddle the truncation limit.
	body := strings.Repeat("a", limit-2) + "\xff" + "ą"
	security.RecordRejection(context.Background(), services.WebhookRequest{
		Body:     []byte(body),
		ClientIP: "203.0.113.7",
		Path:     "/api/v1/rings/webhook",
	}, services.ReasonInvalidSignature)

	list, total, err := security.ListEvents(context.Background(), "", defaultPage())
	require.NoError(t, err)
	require.Equal(t, int64(1), total, "the event is not lost")
	assert.True(t, utf8.ValidString(list[0].Body))
	assert.Equal(t, strings.Repeat("a", limit-2), list[0].Body)
}

func TestLocalStorageUpload(t *testing.T) {
	dir := t.TempDir()
	storage, err := services.NewStorageService(config.AWSConfig{UploadsDir: dir}, "https://api.bigdiamond.pl/")
	require.NoError(t, err)
	ctx := context.Background()

	opts, ok := services.AttachmentUploadOptions(models.AttachmentKindInspiration, uuid.New())
	require.True(t, ok)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	result, err := storage.Upload(ctx, bytesReader(png), "Szkic.PNG", opts)
	require.NoError(t, err)
	assert.Equal(t, "image/png", result.MimeType)
	assert.Equal(t, int64(len(png)), result.Size)
	assert.Contains(t, result.URL, "https://api.bigdiamond.pl/uploads/"+opts.Folder+"/")
	assert.FileExists(t, dir+"/"+result.Key)

	require.NoError(t, storage.Delete(ctx, result.Key))
	assert.NoFileExists(t, dir+"/"+result.Key)
	assert.NoError(t, storage.Delete(ctx, result.Key), "deleting twice is fine")

	_, err = storage.Upload(ctx, bytesReader(png), "model.exe", opts)
	assert.ErrorIs(t, err, services.ErrFileTypeInvalid)

	opts.MaxSize = 10
	_, err = storage.Upload(ctx, bytesReader(png), "szkic.png", opts)
	assert.ErrorIs(t, err, services.ErrFileTooLarge)

	_, ok = services.AttachmentUploadOptions(models.AttachmentKind("video"), uuid.New())
	assert.False(t, ok)
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
