package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionDuration is the fixed absolute lifetime of LocalSession and UpstreamSession cookies.
	SessionDuration = 24 * time.Hour

	// GatePassDuration bounds the window between a correct PIN and the admin credential step.
	GatePassDuration = 5 * time.Minute

	// DefaultIssuer is the iss claim of every token minted by this service.
	DefaultIssuer = "novao"

	audienceSession  = "novao.session"
	audienceGatePass = "novao.gate"
	minSecretLength  = 32
)

var (
	// ErrInvalidToken covers malformed, forged, expired and wrong-purpose tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims is the JWT payload of a LocalSession.
type SessionClaims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 tokens for LocalSessions and gate passes.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer returns an Issuer keyed with secret.
func NewIssuer(secret []byte, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("signing secret too short; need >=%d bytes", minSecretLength)
	}
	i := &Issuer{
		secret: append([]byte(nil), secret...),
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueSession mints a LocalSession token for subject with the given scope.
func (i *Issuer) IssueSession(subject string, scope Scope) (string, *LocalSession, error) {
	if subject == "" {
		return "", nil, errors.New("session subject is required")
	}
	if !scope.Valid() {
		return "", nil, fmt.Errorf("invalid session scope %q", scope)
	}
	now := i.now().UTC().Truncate(time.Second)
	session := &LocalSession{
		Subject:   subject,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(SessionDuration),
	}
	token, err := i.sign(session.Subject, scope, audienceSession, now, session.ExpiresAt)
	if err != nil {
		return "", nil, err
	}
	return token, session, nil
}

// VerifySession parses a LocalSession token.
func (i *Issuer) VerifySession(token string) (*LocalSession, error) {
	claims, err := i.parse(token, audienceSession)
	if err != nil {
		return nil, err
	}
	if !claims.Scope.Valid() || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &LocalSession{
		Subject:   claims.Subject,
		Scope:     claims.Scope,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueGatePass mints the short-lived token proving the PIN step succeeded.
func (i *Issuer) IssueGatePass() (string, time.Time, error) {
	now := i.now().UTC().Truncate(time.Second)
	expires := now.Add(GatePassDuration)
	token, err := i.sign(AdminSubject, "", audienceGatePass, now, expires)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// VerifyGatePass checks a gate pass minted by IssueGatePass.
func (i *Issuer) VerifyGatePass(token string) error {
	_, err := i.parse(token, audienceGatePass)
	return err
}

func (i *Issuer) sign(subject string, scope Scope, audience string, iat, exp time.Time) (string, error) {
	claims := SessionClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) parse(token, audience string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
		jwt.WithStrictDecoding(),
	)
	var claims SessionClaims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &claims, nil
}
