package sms

import (
	"context"
	"fmt"
	"sync"

	"TrafficWatch/config"
	"TrafficWatch/pkg/logger"

	"go.uber.org/zap"
)

// Receipt describes a delivery attempt accepted by the provider.
type Receipt struct {
	MessageSID string // provider message identifier
	Status     string // provider delivery status at submit time
	Provider   string
}

// Client is the notifier contract: deliver one free-text message to a phone
// number. Implementations return errors.DeliveryFailed on provider failure.
type Client interface {
	SendMessage(ctx context.Context, phone, body string) (*Receipt, error)
}

var (
	smsClient Client
	smsOnce   sync.Once
	smsErr    error
)

// Init wires the configured SMS provider.
func Init() error {
	smsOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.SMSProvider {
		case "twilio":
			smsClient, smsErr = NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
		case "mock":
			smsClient = NewMockClient()
		default:
			smsErr = fmt.Errorf("unsupported SMS provider: %s", cfg.SMSProvider)
		}

		if smsErr != nil {
			logger.Logger.Error("Failed to initialize SMS client", zap.Error(smsErr))
			return
		}

		logger.Logger.Info("SMS client initialized successfully",
			zap.String("provider", cfg.SMSProvider),
		)
	})

	return smsErr
}

func GetClient() Client {
	if smsClient == nil {
		panic("SMS client not initialized, call sms.Init() first")
	}
	return smsClient
}

func SendMessage(ctx context.Context, phone, body string) (*Receipt, error) {
	return GetClient().SendMessage(ctx, phone, body)
}
