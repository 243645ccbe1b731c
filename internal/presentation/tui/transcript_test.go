package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	res := domain.Result{
		SessionID:     "s-1",
		Code:          "*185#",
		Success:       true,
		Message:       "Sent. Txn ID: ABC123",
		TransactionID: "ABC123",
		Outcome:       domain.OutcomeSuccess,
		ScreenLog:     domain.ScreenLog{"Enter PIN\n*", "Sent. Txn ID: ABC123"},
		StartedAt:     start,
		FinishedAt:    start.Add(4 * time.Second),
	}

	md := Transcript(res)
	assert.True(t, strings.HasPrefix(md, "# *185#\n"))
	assert.Contains(t, md, "**Outcome:** `success`")
	assert.Contains(t, md, "**Transaction:** `ABC123`")
	assert.Contains(t, md, "**Duration:** 4s")
	assert.Contains(t, md, "1. Enter PIN \\*\n")
	assert.Contains(t, md, "2. Sent. Txn ID: ABC123\n")
}

func TestTranscript_NoScreens(t *testing.T) {
	md := Transcript(domain.Result{Outcome: domain.OutcomeBusy, Message: domain.MessageBusy})
	assert.True(t, strings.HasPrefix(md, "# USSD session\n"))
	assert.NotContains(t, md, "## Screens")
	assert.NotContains(t, md, "Transaction")
}

func TestPrintResult_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	res := domain.Result{Code: "*185#", Outcome: domain.OutcomeTimeout, Message: "USSD timeout after 60s"}
	require.NoError(t, PrintResult(&buf, res))
	assert.Equal(t, Transcript(res), buf.String())
	assert.False(t, IsTerminal(&buf))
}

func TestOutcomeLabel(t *testing.T) {
	var buf bytes.Buffer
	assert.Contains(t, OutcomeLabel(&buf, domain.OutcomeSuccess), "success")
}
