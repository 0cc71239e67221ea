package requests

// SubmitAgentRequest is the body of POST /v1/agent/requests.
type SubmitAgentRequest struct {
	Text           string `json:"text" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

// ApprovalRequest is the body of POST /v1/agent/plans/:plan_id/approval.
type ApprovalRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// KillSwitchToggleRequest is the body of PUT /v1/admin/killswitch/:capability.
type KillSwitchToggleRequest struct {
	Engaged bool   `json:"engaged"`
	Reason  string `json:"reason"`
}
