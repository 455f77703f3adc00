package domain

import "context"

// Actor is the per-request identity derived from authentication. A zero ID
// means the request is anonymous.
type Actor struct {
	ID string
}

// Anonymous reports whether the actor carries no identity.
func (a Actor) Anonymous() bool { return a.ID == "" }

// Profile is the displayable identity of a user, resolved from the identity
// collaborator. The lookup may be remote.
type Profile struct {
	Handle string
	Name   string
	Image  string
	Emails []string
}

// Identity resolves user profiles.
type Identity interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// Access decides what an actor may do to a board.
type Access struct {
	adminID  string
	identity Identity
}

// NewAccess configures the evaluator. An empty adminID means nobody holds
// admin rights.
func NewAccess(adminID string, identity Identity) *Access {
	return &Access{adminID: adminID, identity: identity}
}

// IsAdmin reports whether the actor matches the configured administrator
// identifier by handle or by any registered email address. When no
// administrator identifier is configured the answer is always false.
func (a *Access) IsAdmin(ctx context.Context, actor Actor) (bool, error) {
	if a.adminID == "" || actor.Anonymous() {
		return false, nil
	}
	p, err := a.identity.Profile(ctx, actor.ID)
	if err != nil {
		return false, err
	}
	if p.Handle != "" && p.Handle == a.adminID {
		return true, nil
	}
	for _, email := range p.Emails {
		if email != "" && email == a.adminID {
			return true, nil
		}
	}
	return false, nil
}

// CanView reports whether the actor may read the board: public boards are
// visible to everyone including anonymous actors, private boards only to
// their owner.
func (a *Access) CanView(actor Actor, b Board) bool {
	if b.IsPublic {
		return true
	}
	return !actor.Anonymous() && actor.ID == b.OwnerID
}

// CanMutate reports whether the actor may mutate the board and its cards.
// Starter templates are immutable for everyone, owners included, and that
// gate comes before any ownership or admin consideration. The ownership
// check runs before IsAdmin so the common owner path never performs the
// remote profile lookup.
func (a *Access) CanMutate(ctx context.Context, actor Actor, b Board) (bool, error) {
	if b.IsStarter() {
		return false, nil
	}
	if actor.Anonymous() {
		return false, nil
	}
	if actor.ID == b.OwnerID {
		return true, nil
	}
	return a.IsAdmin(ctx, actor)
}
