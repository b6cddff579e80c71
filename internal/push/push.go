// Package push is the boundary with the external push provider. The
// messaging core only needs deliver(token, platform, title, body, data)
// with a tri-state outcome; everything provider-specific stays here.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Result int

const (
	ResultOK Result = iota
	// ResultPermanentFailure means the token is dead and should be
	// deactivated for future sends.
	ResultPermanentFailure
	ResultTransientFailure
)

type Sender interface {
	Send(ctx context.Context, token, platform, title, body string, data map[string]string) (Result, error)
}

// FCMSender delivers through the FCM legacy HTTP endpoint.
type FCMSender struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

func NewFCMSender(endpoint, serverKey string) *FCMSender {
	return &FCMSender{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

func (s *FCMSender) Send(ctx context.Context, token, platform, title, body string, data map[string]string) (Result, error) {
	payload, err := json.Marshal(fcmRequest{
		To:           token,
		Notification: fcmNotification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return ResultTransientFailure, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return ResultTransientFailure, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return ResultTransientFailure, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return ResultTransientFailure, fmt.Errorf("push provider returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return ResultPermanentFailure, fmt.Errorf("push provider returned %d", resp.StatusCode)
	}

	var out fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ResultTransientFailure, err
	}
	if out.Failure > 0 && len(out.Results) > 0 {
		switch out.Results[0].Error {
		case "NotRegistered", "InvalidRegistration", "MismatchSenderId":
			return ResultPermanentFailure, fmt.Errorf("push token rejected: %s", out.Results[0].Error)
		default:
			return ResultTransientFailure, fmt.Errorf("push delivery failed: %s", out.Results[0].Error)
		}
	}
	return ResultOK, nil
}
