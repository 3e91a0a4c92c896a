package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/models"
)

func TestNewTicketsCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewTicketsCmd()
	require.Equal(t, "tickets", cmd.Use)

	for _, name := range []string{"list", "get", "messages", "notify"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.NotNil(t, sub)
		require.Equal(t, name, sub.Name())
	}
}

func TestParseTicketStatus(t *testing.T) {
	for _, raw := range []string{"", "open", "in_progress", "resolved", "closed", " open "} {
		_, err := parseTicketStatus(raw)
		require.NoError(t, err, raw)
	}
	_, err := parseTicketStatus("pending")
	require.Error(t, err)
}

func TestParseEventType(t *testing.T) {
	typ, err := parseEventType("update")
	require.NoError(t, err)
	require.Equal(t, models.EventUpdate, typ)

	_, err = parseEventType("typing")
	require.Error(t, err)
}

func TestTicketsListKeyIncludesFilter(t *testing.T) {
	a := ticketsListKey(models.TicketFilter{Status: models.TicketOpen, Limit: 50})
	b := ticketsListKey(models.TicketFilter{Status: models.TicketClosed, Limit: 50})
	require.NotEqual(t, a, b)
	require.Equal(t, "tickets:list:open::50", a)
}

func TestReadLoadOptions(t *testing.T) {
	cmd := newTicketsListCmd()
	o, err := readLoadOptions(cmd)
	require.NoError(t, err)
	require.True(t, o.wait)
	require.Equal(t, time.Duration(-1), o.maxStale, "zero flag means any age")

	require.NoError(t, cmd.Flags().Set("no-wait", "true"))
	require.NoError(t, cmd.Flags().Set("max-stale", "1h"))
	o, err = readLoadOptions(cmd)
	require.NoError(t, err)
	require.False(t, o.wait)
	require.Equal(t, time.Hour, o.maxStale)

	require.NoError(t, cmd.Flags().Set("max-stale", "-1h"))
	_, err = readLoadOptions(cmd)
	require.Error(t, err)
}

func TestTicketsListCmd_InvalidStatusReturnsPrintedError(t *testing.T) {
	cmd := newTicketsListCmd()
	require.NoError(t, cmd.Flags().Set("status", "bogus"))

	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.EqualError(t, err, "error already printed")
	require.IsType(t, printedError{}, err)
}

func TestTicketsListCmd_NegativeLimitReturnsPrintedError(t *testing.T) {
	cmd := newTicketsListCmd()
	require.NoError(t, cmd.Flags().Set("limit", "-1"))

	err := cmd.RunE(cmd, nil)
	require.IsType(t, printedError{}, err)
}

func TestTicketsNotifyCmd_InvalidTypeReturnsPrintedError(t *testing.T) {
	cmd := newTicketsNotifyCmd()
	require.NoError(t, cmd.Flags().Set("type", "typing"))

	err := cmd.RunE(cmd, []string{"t1"})
	require.IsType(t, printedError{}, err)
}

func TestNotificationsCmd_RequiresUser(t *testing.T) {
	t.Setenv("ANALYTICKET_USER", "")
	cmd := NewNotificationsCmd()
	cmd.Flags().String("user", "", "")

	err := cmd.RunE(cmd, nil)
	require.IsType(t, printedError{}, err)
}

func TestTicketsFlagSetup(t *testing.T) {
	list := newTicketsListCmd()
	requireFlagExists(t, list, "status")
	requireFlagExists(t, list, "assigned-to")
	requireFlagExists(t, list, "limit")
	requireFlagExists(t, list, "no-wait")
	requireFlagExists(t, list, "max-stale")

	msgs := newTicketsMessagesCmd()
	requireFlagExists(t, msgs, "include-internal")
	requireFlagExists(t, msgs, "limit")
}
