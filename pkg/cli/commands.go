package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// accessRequest mirrors the server's request representation; only the
// fields the CLI renders are listed.
type accessRequest struct {
	RequestID       string     `json:"requestId"`
	PrincipalEmail  string     `json:"principalEmail"`
	TargetName      string     `json:"targetName"`
	CapabilityName  string     `json:"capabilityName"`
	RiskTier        string     `json:"riskTier"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason"`
	DurationMinutes int        `json:"durationMinutes"`
	RequestedAt     time.Time  `json:"requestedAt"`
	ExpiresAt       time.Time  `json:"expiresAt"`
	ApproverEmail   string     `json:"approverEmail,omitempty"`
	RevokedBy       string     `json:"revokedBy,omitempty"`
	RevokedAt       *time.Time `json:"revokedAt,omitempty"`
	ErrorDetail     string     `json:"errorDetail,omitempty"`
}

func newRequestCmd(client *Client, output *string) *cobra.Command {
	var (
		requester  string
		target     string
		capability string
		duration   int
		reason     string
	)
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Submit a new access request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req accessRequest
			err := client.do(http.MethodPost, "/api/requests", map[string]any{
				"requesterEmail":  requester,
				"target":          target,
				"capability":      capability,
				"durationMinutes": duration,
				"reason":          reason,
			}, &req)
			if err != nil {
				return err
			}
			return printRequest(cmd.OutOrStdout(), *output, req)
		},
	}
	cmd.Flags().StringVar(&requester, "requester", "", "Requester email (required)")
	cmd.Flags().StringVar(&target, "target", "", "Target account name (required)")
	cmd.Flags().StringVar(&capability, "capability", "", "Capability name (required)")
	cmd.Flags().IntVar(&duration, "duration", 15, "Access duration in minutes")
	cmd.Flags().StringVar(&reason, "reason", "", "Business reason (required)")
	_ = cmd.MarkFlagRequired("requester")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("capability")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newDecisionCmd(client *Client, output *string, action, short string) *cobra.Command {
	var (
		approver string
		comments string
	)
	cmd := &cobra.Command{
		Use:   action + " <request-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req accessRequest
			err := client.do(http.MethodPost, "/api/approvals", map[string]any{
				"requestId":     args[0],
				"action":        action,
				"approverEmail": approver,
				"comments":      comments,
			}, &req)
			if err != nil {
				return err
			}
			return printRequest(cmd.OutOrStdout(), *output, req)
		},
	}
	cmd.Flags().StringVar(&approver, "approver", "", "Approver email (required)")
	cmd.Flags().StringVar(&comments, "comments", "", "Decision comments")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}

func newApproveCmd(client *Client, output *string) *cobra.Command {
	return newDecisionCmd(client, output, "approve", "Approve a pending access request")
}

func newDenyCmd(client *Client, output *string) *cobra.Command {
	return newDecisionCmd(client, output, "deny", "Deny a pending access request")
}

func newRevokeCmd(client *Client, output *string) *cobra.Command {
	var revoker string
	cmd := &cobra.Command{
		Use:   "revoke <request-id>",
		Short: "Revoke active access ahead of its expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req accessRequest
			err := client.do(http.MethodPost, "/api/revocations", map[string]any{
				"requestId":    args[0],
				"revokerEmail": revoker,
			}, &req)
			if err != nil {
				return err
			}
			return printRequest(cmd.OutOrStdout(), *output, req)
		},
	}
	cmd.Flags().StringVar(&revoker, "revoker", "", "Revoker email (required)")
	_ = cmd.MarkFlagRequired("revoker")
	return cmd
}

func newGetCmd(client *Client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <request-id>",
		Short: "Show one access request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req accessRequest
			if err := client.do(http.MethodGet, "/api/requests/"+args[0], nil, &req); err != nil {
				return err
			}
			return printRequest(cmd.OutOrStdout(), *output, req)
		},
	}
}

func newListCmd(client *Client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List access requests, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body struct {
				Requests []accessRequest `json:"requests"`
			}
			if err := client.do(http.MethodGet, "/api/requests", nil, &body); err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), body.Requests)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REQUEST ID\tPRINCIPAL\tTARGET\tCAPABILITY\tRISK\tSTATUS\tEXPIRES")
			for _, req := range body.Requests {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					req.RequestID, req.PrincipalEmail, req.TargetName,
					req.CapabilityName, req.RiskTier, req.Status,
					req.ExpiresAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func printRequest(w io.Writer, output string, req accessRequest) error {
	if output == "json" {
		return printJSON(w, req)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Request ID:\t%s\n", req.RequestID)
	fmt.Fprintf(tw, "Principal:\t%s\n", req.PrincipalEmail)
	fmt.Fprintf(tw, "Target:\t%s\n", req.TargetName)
	fmt.Fprintf(tw, "Capability:\t%s (%s)\n", req.CapabilityName, req.RiskTier)
	fmt.Fprintf(tw, "Status:\t%s\n", req.Status)
	fmt.Fprintf(tw, "Duration:\t%d minutes\n", req.DurationMinutes)
	fmt.Fprintf(tw, "Expires:\t%s\n", req.ExpiresAt.Format(time.RFC3339))
	if req.ApproverEmail != "" {
		fmt.Fprintf(tw, "Approver:\t%s\n", req.ApproverEmail)
	}
	if req.RevokedBy != "" {
		fmt.Fprintf(tw, "Revoked by:\t%s\n", req.RevokedBy)
	}
	if req.ErrorDetail != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", req.ErrorDetail)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
