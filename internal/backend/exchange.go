package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brizzai/zeroinbox/internal/logger"
	"github.com/brizzai/zeroinbox/internal/models"
	"go.uber.org/zap"
)

// ExchangePath is the backend endpoint receiving the authorization code
const ExchangePath = "/auth/google/exchange"

// ExchangeRequest holds what the backend needs to redeem an authorization code
type ExchangeRequest struct {
	Code            string
	CodeVerifier    string
	ClientID        string
	RedirectURI     string
	RequireVerifier bool
}

// exchangeBody is the wire format of the exchange call
type exchangeBody struct {
	ServerAuthCode string `json:"serverAuthCode"`
	CodeVerifier   string `json:"codeVerifier,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	RedirectURI    string `json:"redirectUri,omitempty"`
}

// ExchangeResult is either OK with the backend's opaque body, or a failure
type ExchangeResult struct {
	OK   bool
	Body []byte
	Err  *Error
}

func failed(err *Error) ExchangeResult {
	return ExchangeResult{Err: err}
}

// Exchange forwards the authorization code to the backend. It refuses to send
// a request with an empty code, or with an empty verifier when one is required.
func (c *Client) Exchange(ctx context.Context, in ExchangeRequest) ExchangeResult {
	const op = "exchange"

	if in.Code == "" {
		return failed(&Error{Kind: models.KindResponseMalformed, Op: op, Err: ErrMissingCode})
	}
	if in.RequireVerifier && in.CodeVerifier == "" {
		return failed(&Error{Kind: models.KindResponseMalformed, Op: op, Err: ErrMissingVerifier})
	}

	payload, err := json.Marshal(exchangeBody{
		ServerAuthCode: in.Code,
		CodeVerifier:   in.CodeVerifier,
		ClientID:       in.ClientID,
		RedirectURI:    in.RedirectURI,
	})
	if err != nil {
		return failed(&Error{Kind: models.KindExchangeTransportFailure, Op: op, Err: err})
	}

	req, err := c.newRequest(ctx, http.MethodPost, ExchangePath, bytes.NewReader(payload))
	if err != nil {
		kind := models.KindExchangeTransportFailure
		if errors.Is(err, ErrNoBaseURL) {
			kind = models.KindConfigurationMissing
		}
		return failed(&Error{Kind: kind, Op: op, Err: err})
	}

	logger.Info("exchanging authorization code",
		logger.Secret("code", in.Code),
		zap.Bool("pkce", in.CodeVerifier != ""),
		zap.String("redirect_uri", in.RedirectURI),
	)

	resp, err := c.execute(req)
	if err != nil {
		logger.Error("exchange request failed", zap.Error(err))
		return failed(&Error{Kind: models.KindExchangeTransportFailure, Op: op, Err: err})
	}

	if !resp.OK() {
		logger.Warn("exchange rejected by backend", zap.Int("status", resp.StatusCode))
		return failed(&Error{
			Kind:       models.KindExchangeBackendFailure,
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     detail(resp.Body),
		})
	}

	if isJSON(resp.Headers) && len(bytes.TrimSpace(resp.Body)) > 0 {
		var shape struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if err := json.Unmarshal(resp.Body, &shape); err != nil {
			// A JSON array or scalar is still an opaque success
			var anyValue any
			if jsonErr := json.Unmarshal(resp.Body, &anyValue); jsonErr != nil {
				return failed(&Error{
					Kind:       models.KindExchangeBackendFailure,
					Op:         op,
					StatusCode: resp.StatusCode,
					Detail:     "unexpected response: " + detail(resp.Body),
				})
			}
		} else if shape.Error != "" {
			msg := shape.Error
			if shape.ErrorDescription != "" {
				msg += ": " + shape.ErrorDescription
			}
			return failed(&Error{
				Kind:       models.KindExchangeBackendFailure,
				Op:         op,
				StatusCode: resp.StatusCode,
				Detail:     msg,
			})
		}
	}

	return ExchangeResult{OK: true, Body: resp.Body}
}
