package authorization

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/config"
)

var (
	// ErrUnauthenticated is returned when no valid token was presented
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the caller lacks the capability
	ErrForbidden = errors.New("insufficient capability")
)

// Policy decides whether a subject holds a capability. Each capability is a
// CEL rule over `subject`, `resource` and `request`, compiled once.
type Policy struct {
	programs map[string]cel.Program
}

// NewPolicy compiles the capability rules
func NewPolicy(rules map[string]string) (*Policy, error) {
	engine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}

	programs := make(map[string]cel.Program, len(rules))
	for capability, rule := range rules {
		if strings.TrimSpace(rule) == "" {
			return nil, fmt.Errorf("capability %s has an empty rule", capability)
		}
		program, err := engine.Compile(rule)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", capability, err)
		}
		programs[capability] = program
	}

	return &Policy{programs: programs}, nil
}

// Capabilities returns the configured capability names in sorted order
func (p *Policy) Capabilities() []string {
	names := make([]string, 0, len(p.programs))
	for name := range p.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Can reports whether subject holds capability. Unknown capabilities are never granted.
func (p *Policy) Can(subject *entities.Subject, capability string, resource map[string]interface{}) (bool, error) {
	program, ok := p.programs[capability]
	if !ok {
		return false, fmt.Errorf("unknown capability: %s", capability)
	}
	if subject == nil {
		return false, nil
	}

	return EvaluateProgram(program, &EvaluationContext{
		Subject:  subject.AsMap(),
		Resource: resource,
		Request:  map[string]interface{}{"capability": capability},
	})
}

// Authenticator resolves bearer tokens to subjects
type Authenticator struct {
	tokens []config.APIToken
}

// NewAuthenticator creates an authenticator over the configured tokens
func NewAuthenticator(tokens []config.APIToken) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate returns the subject owning token
func (a *Authenticator) Authenticate(token string) (*entities.Subject, bool) {
	if token == "" {
		return nil, false
	}
	for _, t := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(t.Token), []byte(token)) == 1 {
			return &entities.Subject{Login: t.Login, Role: t.Role}, true
		}
	}
	return nil, false
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Guard combines authentication and capability checks for the transports
type Guard struct {
	authenticator *Authenticator
	policy        *Policy
}

// NewGuard creates a new Guard
func NewGuard(authenticator *Authenticator, policy *Policy) *Guard {
	return &Guard{authenticator: authenticator, policy: policy}
}

// Authorize resolves the Authorization header and checks the capability.
// Errors wrap ErrUnauthenticated or ErrForbidden.
func (g *Guard) Authorize(ctx context.Context, authorization string, capability string) (*entities.Subject, error) {
	subject, ok := g.authenticator.Authenticate(BearerToken(authorization))
	if !ok {
		return nil, ErrUnauthenticated
	}

	allowed, err := g.policy.Can(subject, capability, nil)
	if err != nil {
		return subject, fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	if !allowed {
		return subject, fmt.Errorf("%w: %s lacks %s", ErrForbidden, subject, capability)
	}

	return subject, nil
}
