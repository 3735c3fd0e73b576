package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesEventType(t *testing.T) {
	tests := []struct {
		pattern, typ string
		want         bool
	}{
		{"*", "Budget.Allocated", true},
		{"Budget.*", "Budget.Allocated", true},
		{"Budget.*", "BudgetX.Allocated", false},
		{"Budget.Allocated", "Budget.Allocated", true},
		{"Budget.Allocated", "Budget.Created", false},
		{"Project.*", "Budget.Created", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesEventType(tt.pattern, tt.typ), "%s vs %s", tt.pattern, tt.typ)
	}
}

func TestCreateWebhookRequest_Validate(t *testing.T) {
	ok := CreateWebhookRequest{Name: "erp", EndpointURL: "https://erp.example.com/hook", EventTypes: []string{"Payment.*"}}
	require.NoError(t, ok.Validate())

	bad := []CreateWebhookRequest{
		{Name: "", EndpointURL: ok.EndpointURL, EventTypes: ok.EventTypes},
		{Name: "erp", EndpointURL: "ftp://erp", EventTypes: ok.EventTypes},
		{Name: "erp", EndpointURL: "/relative", EventTypes: ok.EventTypes},
		{Name: "erp", EndpointURL: ok.EndpointURL},
		{Name: "erp", EndpointURL: ok.EndpointURL, EventTypes: []string{"Payment"}},
		{Name: "erp", EndpointURL: ok.EndpointURL, EventTypes: []string{"Payment.Requested.Extra"}},
	}
	for _, req := range bad {
		err := req.Validate()
		require.Error(t, err, "%+v", req)
		assert.Equal(t, KindInvalidInputs, KindOf(err))
	}
}
