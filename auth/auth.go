// Package auth verifies caller identity and role claims. Handlers only see
// the Verifier interface; production wires the Firebase implementation and
// tests use the static one.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var (
	// ErrUnauthenticated covers missing, expired, revoked, and malformed tokens.
	ErrUnauthenticated = errors.New("could not authenticate user")

	// ErrUnknownUser means a double-check lookup referenced a user that no longer exists.
	ErrUnknownUser = errors.New("unknown user")
)

// Claims is the decoded identity a verified token carries.
type Claims struct {
	UID       string
	Admin     bool
	Volunteer bool
	IssuedAt  int64
}

// Verifier turns a raw bearer token into claims. IsAdmin re-reads the user
// record so destructive operations can double-check the role instead of
// trusting the token copy alone.
type Verifier interface {
	VerifyToken(ctx context.Context, rawToken string) (*Claims, error)
	IsAdmin(ctx context.Context, uid string) (bool, error)
}

// FirebaseVerifier validates Firebase ID tokens with revocation checking.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

// NewFirebaseVerifier builds a verifier from a service account credentials
// file, or from application default credentials when the path is empty.
func NewFirebaseVerifier(ctx context.Context, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %v", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth: %v", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// VerifyToken checks signature, expiry, and revocation, then extracts role claims.
func (v *FirebaseVerifier) VerifyToken(ctx context.Context, rawToken string) (*Claims, error) {
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, rawToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return &Claims{
		UID:       token.UID,
		Admin:     boolClaim(token.Claims, "admin"),
		Volunteer: boolClaim(token.Claims, "volunteer"),
		IssuedAt:  token.IssuedAt,
	}, nil
}

// IsAdmin re-reads the user record's custom claims.
func (v *FirebaseVerifier) IsAdmin(ctx context.Context, uid string) (bool, error) {
	user, err := v.client.GetUser(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("get user %s: %w", uid, err)
	}
	return boolClaim(user.CustomClaims, "admin"), nil
}

func boolClaim(claims map[string]interface{}, name string) bool {
	value, ok := claims[name]
	if !ok {
		return false
	}
	b, ok := value.(bool)
	return ok && b
}

// StaticVerifier maps fixed tokens to claims. Test and local-development use only.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]Claims
}

// NewStaticVerifier returns an empty static verifier.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{tokens: make(map[string]Claims)}
}

// Register associates a raw token with claims.
func (v *StaticVerifier) Register(rawToken string, claims Claims) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[rawToken] = claims
}

// VerifyToken returns the registered claims or ErrUnauthenticated.
func (v *StaticVerifier) VerifyToken(_ context.Context, rawToken string) (*Claims, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	claims, ok := v.tokens[rawToken]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return &claims, nil
}

// IsAdmin reports whether any registered token carries the admin claim for the uid.
func (v *StaticVerifier) IsAdmin(_ context.Context, uid string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, claims := range v.tokens {
		if claims.UID == uid {
			return claims.Admin, nil
		}
	}
	return false, ErrUnknownUser
}
