package client

// State is a position in the sign-in pipeline
type State int

const (
	SignedOut State = iota
	Authenticating
	AwaitingGrant
	ExchangingTokens
	FetchingEmails
	SignedInWithEmails
	SignedInNoEmails
)

func (s State) String() string {
	switch s {
	case SignedOut:
		return "signed-out"
	case Authenticating:
		return "authenticating"
	case AwaitingGrant:
		return "awaiting-grant"
	case ExchangingTokens:
		return "exchanging-tokens"
	case FetchingEmails:
		return "fetching-emails"
	case SignedInWithEmails:
		return "signed-in"
	case SignedInNoEmails:
		return "signed-in-no-emails"
	default:
		return "unknown"
	}
}

// SignedIn reports whether an identity is established in s.
func (s State) SignedIn() bool {
	return s == SignedInWithEmails || s == SignedInNoEmails
}

// Step names the pipeline step that failed
type Step string

const (
	StepSignIn   Step = "sign-in"
	StepGrant    Step = "grant"
	StepExchange Step = "exchange"
	StepFetch    Step = "fetch"
	StepResume   Step = "resume"
	StepRefresh  Step = "refresh"
	StepDelete   Step = "delete-data"
	StepSignOut  Step = "sign-out"
)
