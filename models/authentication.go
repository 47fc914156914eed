package models

type AuthenticationState string

const (
	AuthenticationPending   AuthenticationState = "pending"
	AuthenticationCompleted AuthenticationState = "completed"
	AuthenticationTimedOut  AuthenticationState = "timed_out"
)

// AuthenticationSession is the result of device-data-collection
// authentication. TimedOut sessions are still successful results.
type AuthenticationSession struct {
	TransactionReference string              `json:"transaction_reference"`
	ReferenceID          string              `json:"reference_id"`
	AccessToken          string              `json:"access_token"`
	CollectionURL        string              `json:"collection_url,omitempty"`
	State                AuthenticationState `json:"state"`
	TimedOut             bool                `json:"timed_out,omitempty"`
}

// SessionID is the identifier sent along with the payment.
func (s *AuthenticationSession) SessionID() string {
	if s == nil {
		return ""
	}
	return s.ReferenceID
}
