package commands

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/classify"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/output"
)

// NewClassifyCmd creates the classify command.
func NewClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <message>",
		Short: "Classify an error message into a recovery kind",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := strings.TrimSpace(strings.Join(args, " "))
			if msg == "" {
				return cmdErr(errors.New("message is required"))
			}
			rec := classify.Classify(errors.New(msg), time.Now().UTC())

			type resp struct {
				Record      models.ErrorRecord `json:"record"`
				UserMessage string             `json:"user_message"`
				Suggestion  string             `json:"suggested_action"`
			}
			return output.PrintSuccess(resp{
				Record:      rec,
				UserMessage: rec.Kind.UserMessage(),
				Suggestion:  rec.Kind.Suggestion(),
			})
		},
	}
}
