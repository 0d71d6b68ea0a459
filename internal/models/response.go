package models

import (
	"fmt"
	"net/url"
)

// ResponseType is the variant tag of an AuthorizationResponse
type ResponseType string

const (
	ResponseSuccess ResponseType = "success"
	ResponseDismiss ResponseType = "dismiss"
	ResponseError   ResponseType = "error"
	ResponseCancel  ResponseType = "cancel"
)

// AuthorizationResponse is the provider's answer to an authorization request.
// Only success carries params; the other variants carry at most an error.
type AuthorizationResponse struct {
	Type             ResponseType
	Params           map[string]string
	ErrorCode        string
	ErrorDescription string
}

// Code returns the authorization code, empty when absent
func (r AuthorizationResponse) Code() string {
	return r.Params["code"]
}

// State returns the echoed state parameter, empty when absent
func (r AuthorizationResponse) State() string {
	return r.Params["state"]
}

// Reason is a short human readable explanation of a non-success response
func (r AuthorizationResponse) Reason() string {
	switch r.Type {
	case ResponseDismiss:
		return "sign-in dismissed"
	case ResponseCancel:
		return "sign-in cancelled"
	case ResponseError:
		if r.ErrorDescription != "" {
			return fmt.Sprintf("provider error %s: %s", r.ErrorCode, r.ErrorDescription)
		}
		if r.ErrorCode != "" {
			return "provider error " + r.ErrorCode
		}
		return "provider error"
	}
	return ""
}

// Dismissed builds a dismiss response
func Dismissed() AuthorizationResponse {
	return AuthorizationResponse{Type: ResponseDismiss}
}

// Cancelled builds a cancel response
func Cancelled() AuthorizationResponse {
	return AuthorizationResponse{Type: ResponseCancel}
}

// ParseAuthorizationResponse decodes the query of a redirect back from the
// provider. An "error" parameter always wins over a code.
func ParseAuthorizationResponse(values url.Values) AuthorizationResponse {
	if errCode := values.Get("error"); errCode != "" {
		return AuthorizationResponse{
			Type:             ResponseError,
			ErrorCode:        errCode,
			ErrorDescription: values.Get("error_description"),
		}
	}

	params := make(map[string]string, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}
	return AuthorizationResponse{Type: ResponseSuccess, Params: params}
}

// ParseRedirectURL decodes a full redirect URL, including app-scheme URLs
// such as com.googleusercontent.apps.123:/oauthredirect?code=...
func ParseRedirectURL(raw string) (AuthorizationResponse, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return AuthorizationResponse{}, fmt.Errorf("invalid redirect url: %w", err)
	}
	values := u.Query()
	// Implicit-style providers put the params in the fragment
	if len(values) == 0 && u.Fragment != "" {
		values, err = url.ParseQuery(u.Fragment)
		if err != nil {
			return AuthorizationResponse{}, fmt.Errorf("invalid redirect fragment: %w", err)
		}
	}
	return ParseAuthorizationResponse(values), nil
}
