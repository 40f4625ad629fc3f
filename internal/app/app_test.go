package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivekr-wallet-backend/internal/config"
	"drivekr-wallet-backend/internal/lock"
	"drivekr-wallet-backend/internal/notify"
	"drivekr-wallet-backend/internal/repository/memory"
)

func TestOpen_Memory(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "memory"}}
	in, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer in.Close()

	assert.IsType(t, &memory.Store{}, in.Store)
	assert.IsType(t, &lock.KeyedMutex{}, in.Locker)
	assert.Nil(t, in.Redis)
	assert.NoError(t, in.Health(context.Background()))
}

func TestOpen_UnknownStorage(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Storage: config.StorageConfig{Type: "mongo"}})
	assert.Error(t, err)
}

func TestChannels(t *testing.T) {
	cfg := &config.Config{Notification: config.NotificationConfig{
		Channels: []string{"email", " whatsapp"},
		SendGrid: config.SendGridConfig{APIKey: "SG.test", FromEmail: "no-reply@drivekr.in", FromName: "DriveKR"},
	}}
	channels := Channels(cfg)
	require.Len(t, channels, 2)
	assert.Equal(t, notify.ChannelEmail, channels[0].Name())
	assert.Equal(t, notify.ChannelWhatsApp, channels[1].Name())
}
