package api

// Endpoint groups, used for rate limiting and metrics labels
const (
	EndpointSubmit     = "submit"
	EndpointStatus     = "status"
	EndpointRegenerate = "regenerate"
	EndpointFinalize   = "finalize"
)

// SubmitResponse is returned by POST /generate-questions
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// RegenerateRequest is the body of POST /regenerate-question/{job_id}
type RegenerateRequest struct {
	UserFeedback string `json:"user_feedback"`
}

// FinalizeRequest is the body of POST /finalize-question/{job_id}
type FinalizeRequest struct {
	FinalQuestion string `json:"final_question"`
}
