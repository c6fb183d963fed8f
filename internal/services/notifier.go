package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/coldtruck/coldtruck-backend/internal/models"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// DriverNotifier tells a driver about a change to one of their trips
type DriverNotifier interface {
	NotifyDriver(ctx context.Context, driver *models.User, event TripEvent) error
}

// NopNotifier sends nothing
type NopNotifier struct{}

func (NopNotifier) NotifyDriver(context.Context, *models.User, TripEvent) error { return nil }

// messageCreator is the part of the Twilio REST client the notifier uses
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends WhatsApp messages through Twilio
type TwilioNotifier struct {
	api  messageCreator
	from string
	log  logger.Logger
}

// NewTwilioNotifier creates a notifier from account credentials. from is
// the sender in "whatsapp:+14155238886" form.
func NewTwilioNotifier(accountSID, authToken, from string, log logger.Logger) (*TwilioNotifier, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioNotifier{api: client.Api, from: from, log: log}, nil
}

func (n *TwilioNotifier) NotifyDriver(ctx context.Context, driver *models.User, event TripEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(n.from)
	params.SetTo(whatsAppAddress(driver.PhoneNumber))
	params.SetBody(tripMessage(driver, event))

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send WhatsApp message to driver %d: %w", driver.ID, err)
	}

	if resp.Sid != nil {
		n.log.Debug("WhatsApp message sent", "driverId", driver.ID, "sid", *resp.Sid)
	}
	return nil
}

func whatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

func tripMessage(driver *models.User, event TripEvent) string {
	name := driver.Name
	if name == "" {
		name = "driver"
	}

	switch event.Type {
	case EventTripStarted:
		return fmt.Sprintf("Hi %s, trip #%d has started. Drive safely and keep the cargo within range.", name, event.TripID)
	case EventTripFinished:
		return fmt.Sprintf("Hi %s, trip #%d is finished. You and your truck are available again.", name, event.TripID)
	case EventTripCanceled:
		return fmt.Sprintf("Hi %s, trip #%d was canceled because its arrival date passed.", name, event.TripID)
	default:
		return fmt.Sprintf("Hi %s, trip #%d was updated.", name, event.TripID)
	}
}
