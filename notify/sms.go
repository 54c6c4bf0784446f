// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const smsPatternPath = "/api/v1/sms/pattern/normal/send"

// maxResponseBytes bounds the provider response kept in the delivery log
const maxResponseBytes = 2048

type SMSConfig struct {
	BaseURL    string
	APIKey     string
	Sender     string
	PatternID  string
	HTTPClient *http.Client
}

// SMSSender sends codes through the ippanel pattern API
type SMSSender struct {
	baseURL    string
	apiKey     string
	sender     string
	patternID  string
	httpClient *http.Client
}

type smsPatternRequest struct {
	Code      string            `json:"code"`
	Sender    string            `json:"sender"`
	Recipient string            `json:"recipient"`
	Variable  map[string]string `json:"variable"`
}

func NewSMSSender(cfg SMSConfig) *SMSSender {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SMSSender{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		sender:     cfg.Sender,
		patternID:  cfg.PatternID,
		httpClient: client,
	}
}

func (s *SMSSender) Send(ctx context.Context, phone, code string) Delivery {
	payload, err := json.Marshal(smsPatternRequest{
		Code:      s.patternID,
		Sender:    s.sender,
		Recipient: phone,
		Variable:  map[string]string{"verification-code": code},
	})
	if err != nil {
		return Delivery{Err: fmt.Errorf("failed to encode sms request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+smsPatternPath, bytes.NewReader(payload))
	if err != nil {
		return Delivery{Err: fmt.Errorf("failed to build sms request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Delivery{Err: fmt.Errorf("sms request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode != http.StatusOK {
		return Delivery{Response: string(body), Err: fmt.Errorf("sms provider returned %d", resp.StatusCode)}
	}

	return Delivery{OK: true, Response: string(body)}
}
