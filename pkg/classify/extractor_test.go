package classify_test

import (
	"testing"

	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"Your transaction ref: TXN987XYZ was successful", "TXN987XYZ", true},
		{"Payment of 50000 UGX sent to 0772123456. Transaction ID: ABC123", "ABC123", true},
		{"Transaction declined: insufficient funds, reference ABC123", "ABC123", true},
		{"Sent. Txn No.: 4471002 Bal: 1200", "4471002", true},
		{"Receipt number 88AB21", "88AB21", true},
		{"REF:QWERTY done", "QWERTY", true},
		{"Payment successful", "", false},
		{"Transaction ID", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := classify.Extract(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestClassifier_ExtractCustomPattern(t *testing.T) {
	c, err := classify.New(classify.Profile{
		Name:               "mtn",
		TransactionPattern: `financial transaction id:\s*(\d+)`,
	})
	assert.NoError(t, err)

	got, ok := c.Extract("Financial Transaction Id: 1234567. New balance 20")
	assert.True(t, ok)
	assert.Equal(t, "1234567", got)
}

func TestExtract_LowercaseWordsAreNotReferences(t *testing.T) {
	got, ok := classify.Extract("Transaction not completed")
	assert.False(t, ok)
	assert.Empty(t, got)
}
