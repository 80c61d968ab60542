package scan

import (
	"context"

	"authormap/internal/directory"
)

// Resolver produces the individual user identities reachable from one
// project's application security groups.
type Resolver struct {
	client directory.Client
	sid    *directory.SIDHandler
}

// NewResolver creates a resolver backed by the given directory client.
func NewResolver(client directory.Client) *Resolver {
	return &Resolver{
		client: client,
		sid:    directory.NewSIDHandler(),
	}
}

// ResolveProject resolves all user identities reachable from the project's
// application security groups. Expanded membership resolution surfaces direct
// and transitive members; members that still carry unexpanded references are
// resolved individually, one level deep, with no further expansion. Any
// failure aborts the whole project resolution; isolation happens at the
// walker, not here.
func (r *Resolver) ResolveProject(ctx context.Context, project directory.ProjectRef) ([]directory.Identity, error) {
	groups, err := r.client.ListProjectGroups(ctx, project)
	if err != nil {
		return nil, err
	}

	var identities []directory.Identity
	for _, group := range groups {
		members, err := r.client.ResolveMembers(ctx, group, directory.ExpansionExpanded)
		if err != nil {
			return nil, err
		}

		for _, member := range members {
			if member.IsUser() {
				identities = r.appendUser(identities, member)
				continue
			}

			// Nested group surfaced by the expanded query: its member
			// references are expanded one level only, so resolve each
			// reference individually.
			for _, ref := range member.MemberIDs {
				resolved, err := r.client.ResolveIdentity(ctx, ref)
				if err != nil {
					return nil, err
				}
				if resolved.IsUser() {
					identities = r.appendUser(identities, resolved)
				}
			}
		}
	}

	return identities, nil
}

// appendUser appends a user identity unless it is a built-in or service
// principal, which are machine accounts rather than authors.
func (r *Resolver) appendUser(identities []directory.Identity, user directory.Identity) []directory.Identity {
	if r.sid.IsWellKnownSID(user.CanonicalID) {
		return identities
	}
	return append(identities, user)
}
