package abc

// LoginMethod records which path produced a session.
type LoginMethod int

const (
	LoginMethodNone LoginMethod = iota
	LoginMethodPassword
	LoginMethodPIN
	LoginMethodKey
	LoginMethodRecovery
	LoginMethodEdge
	// LoginMethodNewAccount is set on the session returned by CreateAccount.
	LoginMethodNewAccount
)

func (m LoginMethod) String() string {
	switch m {
	case LoginMethodPassword:
		return "password"
	case LoginMethodPIN:
		return "pin"
	case LoginMethodKey:
		return "key"
	case LoginMethodRecovery:
		return "recovery"
	case LoginMethodEdge:
		return "edge"
	case LoginMethodNewAccount:
		return "new_account"
	default:
		return "none"
	}
}

// PasswordRules is the result of a password strength check.
type PasswordRules struct {
	SecondsToCrack float64 `json:"secondsToCrack"`
	TooShort       bool    `json:"tooShort"`
	NoNumber       bool    `json:"noNumber"`
	NoLowerCase    bool    `json:"noLowerCase"`
	NoUpperCase    bool    `json:"noUpperCase"`
	Passed         bool    `json:"passed"`
}

// AccountOptions are passed to every login entry point.
type AccountOptions struct {
	// OTP overrides the code generated from the device's stored OTP key.
	OTP       string
	Callbacks AccountCallbacks
}
