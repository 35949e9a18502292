package sms

import (
	"context"
	"errors"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/metrics"
)

// TwilioClient sends messages through the Twilio REST API.
type TwilioClient struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioClient(accountSID, authToken, from string) (*TwilioClient, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if from == "" {
		return nil, errors.New("twilio sender phone number is required")
	}

	return &TwilioClient{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
	}, nil
}

func (t *TwilioClient) SendMessage(ctx context.Context, phone, body string) (*Receipt, error) {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		logger.Logger.Error("Failed to send SMS",
			zap.String("phone", phone),
			zap.Error(err),
		)
		metrics.RecordSMSSent("twilio", false)
		return nil, pkgerrors.DeliveryFailed
	}

	receipt := &Receipt{Provider: "twilio"}
	if resp.Sid != nil {
		receipt.MessageSID = *resp.Sid
	}
	if resp.Status != nil {
		receipt.Status = *resp.Status
	}

	logger.Logger.Debug("SMS sent successfully",
		zap.String("phone", phone),
		zap.String("message_sid", receipt.MessageSID),
		zap.String("status", receipt.Status),
	)
	metrics.RecordSMSSent("twilio", true)

	return receipt, nil
}
