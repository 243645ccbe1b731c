package classify_test

import (
	"testing"

	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_Classify(t *testing.T) {
	c := classify.MustDefault()

	tests := []struct {
		name string
		text string
		want domain.Classification
	}{
		{"success keyword", "Payment successful", domain.ClassTerminalSuccess},
		{"sent to", "50000 UGX SENT TO 0772123456", domain.ClassTerminalSuccess},
		{"receipt", "Receipt: 99812", domain.ClassTerminalSuccess},
		{"error keyword", "Transaction failed. Try again later", domain.ClassTerminalError},
		{"wrong pin", "Wrong PIN. 2 attempts left", domain.ClassTerminalError},
		{"service unavailable", "Service Unavailable", domain.ClassTerminalError},
		{"menu", "1. Send Money\n2. Withdraw\n3. Airtime", domain.ClassContinue},
		{"prompt", "Enter PIN", domain.ClassContinue},
		{"empty", "", domain.ClassContinue},
		// Success keywords are checked first; this decline mentions a reference.
		{"tie-break", "Transaction declined: insufficient funds, reference ABC123", domain.ClassTerminalSuccess},
		{"disclaimer", "Transfer confirmed. No errors found", domain.ClassTerminalSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestClassifier_Explain(t *testing.T) {
	c := classify.MustDefault()

	v := c.Explain("Payment of 50000 UGX sent to 0772123456. Transaction ID: ABC123")
	assert.Equal(t, domain.ClassTerminalSuccess, v.Classification)
	assert.Equal(t, "sent to", v.Keyword)
	assert.Equal(t, "ABC123", v.TransactionID)

	v = c.Explain("Invalid amount")
	assert.Equal(t, domain.ClassTerminalError, v.Classification)
	assert.Equal(t, "invalid", v.Keyword)
	assert.Empty(t, v.TransactionID)
}

func TestClassifier_SetProfile(t *testing.T) {
	c := classify.MustDefault()
	assert.Equal(t, domain.ClassContinue, c.Classify("Umeshatuma pesa"))

	swahili := classify.Profile{
		Name:    "mpesa-sw",
		Version: "1",
		Success: []string{"umeshatuma", "imekamilika"},
		Error:   []string{"imeshindikana", "salio haitoshi"},
	}
	require.NoError(t, c.SetProfile(swahili))

	assert.Equal(t, domain.ClassTerminalSuccess, c.Classify("Umeshatuma pesa"))
	assert.Equal(t, domain.ClassTerminalError, c.Classify("Salio haitoshi"))
	assert.Equal(t, "mpesa-sw@1", c.Profile().ID())
	assert.Equal(t, []string{"Send", "OK", "Continue"}, c.ContinueLabels(), "labels default")
}

func TestClassifier_SetProfileInvalidKeepsPrevious(t *testing.T) {
	c := classify.MustDefault()
	err := c.SetProfile(classify.Profile{Name: "broken", TransactionPattern: "(unclosed"})
	require.Error(t, err)
	assert.Equal(t, "default", c.Profile().Name)
}

func TestProfile_Validate(t *testing.T) {
	assert.NoError(t, classify.DefaultProfile().Validate())

	err := classify.Profile{Name: "x", Success: []string{" "}, Error: []string{"failed"}}.Validate()
	assert.ErrorContains(t, err, "success keywords are empty")

	err = classify.Profile{
		Name:               "x",
		Success:            []string{"ok"},
		Error:              []string{"failed"},
		TransactionPattern: `txn\s+\w+`,
	}.Validate()
	assert.ErrorContains(t, err, "capture group")
}
