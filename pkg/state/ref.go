package state

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRef is returned for refs that do not map to a storage key.
var ErrInvalidRef = errors.New("state: invalid ref")

// Ref kinds understood by Identifier.
const (
	KindBaseline = "baseline"
	KindScenario = "scenario"
	KindUser     = "user"
)

// Ref identifies one persisted checkpoint of one parameter domain.
type Ref struct {
	Domain string
	Kind   string
	ID     string
}

// Baseline returns the ref of the shared checkpoint of domain.
func Baseline(domain string) Ref {
	return Ref{Domain: domain, Kind: KindBaseline}
}

// Scenario returns the ref of scenario id of domain.
func Scenario(domain, id string) Ref {
	return Ref{Domain: domain, Kind: KindScenario, ID: id}
}

// User returns the ref of the private copy of domain owned by user id.
func User(domain, id string) Ref {
	return Ref{Domain: domain, Kind: KindUser, ID: id}
}

// Identifier renders the storage key of r: baseline/<domain> for baselines
// and <kind>/<id>/<domain> otherwise. Baselines ignore ID.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		return "", fmt.Errorf("%w: missing domain", ErrInvalidRef)
	}
	if strings.Contains(domain, "/") {
		return "", fmt.Errorf("%w: domain %q contains '/'", ErrInvalidRef, domain)
	}
	switch r.Kind {
	case KindBaseline:
		return KindBaseline + "/" + domain, nil
	case KindScenario, KindUser:
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return "", fmt.Errorf("%w: missing id for kind %q", ErrInvalidRef, r.Kind)
		}
		if strings.Contains(id, "/") {
			return "", fmt.Errorf("%w: id %q contains '/'", ErrInvalidRef, id)
		}
		return r.Kind + "/" + id + "/" + domain, nil
	default:
		return "", fmt.Errorf("%w: unsupported kind %q", ErrInvalidRef, r.Kind)
	}
}

// String is the identifier of r, or a placeholder naming the defect.
func (r Ref) String() string {
	key, err := r.Identifier()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return key
}

// ParseRef reverses Identifier.
func ParseRef(key string) (Ref, error) {
	parts := strings.Split(key, "/")
	var ref Ref
	switch {
	case len(parts) == 2 && parts[0] == KindBaseline:
		ref = Baseline(parts[1])
	case len(parts) == 3 && (parts[0] == KindScenario || parts[0] == KindUser):
		ref = Ref{Kind: parts[0], ID: parts[1], Domain: parts[2]}
	default:
		return Ref{}, fmt.Errorf("%w: malformed key %q", ErrInvalidRef, key)
	}
	if canonical, err := ref.Identifier(); err != nil || canonical != key {
		return Ref{}, fmt.Errorf("%w: malformed key %q", ErrInvalidRef, key)
	}
	return ref, nil
}
