package models

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthorizationResponse(t *testing.T) {
	tests := []struct {
		name     string
		values   url.Values
		wantType ResponseType
		wantCode string
		reason   string
	}{
		{
			name:     "success with code",
			values:   url.Values{"code": {"abc123"}, "state": {"s1"}},
			wantType: ResponseSuccess,
			wantCode: "abc123",
		},
		{
			name:     "success without code",
			values:   url.Values{"state": {"s1"}},
			wantType: ResponseSuccess,
		},
		{
			name:     "error wins over code",
			values:   url.Values{"code": {"abc123"}, "error": {"access_denied"}},
			wantType: ResponseError,
			reason:   "provider error access_denied",
		},
		{
			name:     "error with description",
			values:   url.Values{"error": {"invalid_scope"}, "error_description": {"bad scope"}},
			wantType: ResponseError,
			reason:   "provider error invalid_scope: bad scope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ParseAuthorizationResponse(tt.values)
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, tt.wantCode, resp.Code())
			assert.Equal(t, tt.reason, resp.Reason())
		})
	}
}

func TestAccessorsOnEmptyResponse(t *testing.T) {
	var resp AuthorizationResponse
	assert.Empty(t, resp.Code())
	assert.Empty(t, resp.State())
	assert.Equal(t, "sign-in dismissed", Dismissed().Reason())
	assert.Equal(t, "sign-in cancelled", Cancelled().Reason())
}

func TestParseRedirectURL(t *testing.T) {
	resp, err := ParseRedirectURL("com.googleusercontent.apps.123-abc:/oauthredirect?code=4%2F0Ab&state=xyz")
	require.NoError(t, err)
	assert.Equal(t, ResponseSuccess, resp.Type)
	assert.Equal(t, "4/0Ab", resp.Code())
	assert.Equal(t, "xyz", resp.State())

	resp, err = ParseRedirectURL("https://example.com/cb#code=frag&state=s")
	require.NoError(t, err)
	assert.Equal(t, "frag", resp.Code())

	_, err = ParseRedirectURL("http://[::1")
	assert.Error(t, err)
}

func TestPhasePredicates(t *testing.T) {
	assert.True(t, PhaseAwaitingProvider.Busy())
	assert.True(t, PhaseExchangingCode.Busy())
	assert.False(t, PhaseIdle.Busy())
	assert.True(t, PhaseRejected.Failed())
	assert.True(t, PhaseUnreadFetchFailed.Failed())
	assert.False(t, PhaseExchangeSucceeded.Failed())
}
