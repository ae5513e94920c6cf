package http

// ChallengeResponse echoes the catalog's registration challenge.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Response bodies for the webhook endpoint.
const (
	msgReceived            = "Webhook received"
	msgMissingChallenge    = "Missing challenge parameter"
	msgInvalidSignature    = "Internal Server Error: Invalid webhook signature"
	msgMissingInstitution  = "Missing institution parameter"
	msgInstitutionNotFound = "Internal Server Error: Unable to find institution"
	msgInvalidJSON         = "Invalid JSON in request body"
	msgMissingBarcode      = "Invalid payload: Barcode is missing."
	msgEnqueueFailed       = "Error sending message to queue"
	msgBodyTooLarge        = "Request body too large"
	msgInternal            = "Internal Server Error"
)
