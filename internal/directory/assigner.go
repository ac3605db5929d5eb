package directory

import (
	"context"
	"encoding/binary"

	"github.com/google/uuid"
)

// DomainAssigner allocates the home execution domain for a new market. The
// real mechanism (a provisioning handshake with the orchestration layer) is
// an external service boundary; the directory only needs an opaque domain
// identifier back.
type DomainAssigner interface {
	AssignDomain(ctx context.Context, marketID uint64) (string, error)
}

// DerivedAssigner derives the domain identifier deterministically from the
// market id by hashing it into a name-based UUID. It stands in for a real
// provisioning service in single-deployment setups; swap it out when an
// orchestration layer exists.
type DerivedAssigner struct {
	namespace uuid.UUID
}

// NewDerivedAssigner creates an assigner scoped to the given deployment
// name, so two deployments never derive colliding domain identifiers.
func NewDerivedAssigner(deployment string) *DerivedAssigner {
	return &DerivedAssigner{
		namespace: uuid.NewSHA1(uuid.NameSpaceOID, []byte("oddsync:"+deployment)),
	}
}

func (a *DerivedAssigner) AssignDomain(_ context.Context, marketID uint64) (string, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], marketID)
	return uuid.NewSHA1(a.namespace, buf[:]).String(), nil
}

// StaticAssigner pins every market to one shared domain. Used when the
// deployment runs a single execution domain and cross-domain routing only
// happens between peer deployments.
type StaticAssigner struct {
	Domain string
}

func (a StaticAssigner) AssignDomain(_ context.Context, _ uint64) (string, error) {
	return a.Domain, nil
}
