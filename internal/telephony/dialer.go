package telephony

import (
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// CallPlacer places outbound calls through the provider's REST API.
type CallPlacer interface {
	PlaceCall(to, twimlBody string) (callSID string, err error)
}

// TwilioDialer places calls via the Twilio REST API.
type TwilioDialer struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioDialer(accountSID, authToken, fromNumber string) (*TwilioDialer, error) {
	if strings.TrimSpace(accountSID) == "" || strings.TrimSpace(authToken) == "" {
		return nil, fmt.Errorf("twilio credentials are required for outbound calling")
	}
	if strings.TrimSpace(fromNumber) == "" {
		return nil, fmt.Errorf("twilio from-number is required for outbound calling")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioDialer{client: client, from: fromNumber}, nil
}

func (d *TwilioDialer) PlaceCall(to, twimlBody string) (string, error) {
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetTwiml(twimlBody)

	resp, err := d.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("create call: provider returned no call sid")
	}
	return *resp.Sid, nil
}
