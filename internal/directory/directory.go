// Package directory provides read-only access to the organizational
// hierarchy of an Active Directory backed collaboration platform: project
// collections, projects, application security groups and the principals
// reachable from them.
package directory

import (
	"context"
)

// Kind distinguishes the two classes of directory principal.
type Kind string

const (
	KindUser  Kind = "User"  // Individual account, eligible for the author mapping
	KindGroup Kind = "Group" // Container principal, traversed but never emitted
)

// String returns the string representation of the principal kind.
func (k Kind) String() string {
	return string(k)
}

// Identity represents one directory principal.
type Identity struct {
	// Kind classifies the principal as user or group.
	Kind Kind

	// CanonicalID is the stable unique identifier of the principal
	// (SID string, S-1-5-21-...). It is the deduplication key.
	CanonicalID string

	// Ref is the directory location of the principal, usable with
	// Client.ResolveIdentity. Not part of the mapping output.
	Ref string

	// Domain is the authentication domain of the account.
	Domain string

	// AccountName is the short logon name, unique within Domain.
	AccountName string

	// DisplayName is the human-readable name. May be empty.
	DisplayName string

	// MailAddress is the primary email address. May be empty.
	MailAddress string

	// MemberIDs holds opaque member references understood by
	// Client.ResolveIdentity. Populated only for group principals.
	MemberIDs []string
}

// IsUser reports whether the identity is an individual account.
func (i Identity) IsUser() bool {
	return i.Kind == KindUser
}

// CollectionRef identifies one project collection.
type CollectionRef struct {
	Name string // Collection name
	Path string // Directory location of the collection subtree
}

// ProjectRef identifies one project within a collection.
type ProjectRef struct {
	Collection string // Owning collection name
	Name       string // Project name
	Path       string // Directory location of the project subtree
}

// String returns the collection-qualified project name.
func (p ProjectRef) String() string {
	if p.Collection == "" {
		return p.Name
	}
	return p.Collection + "/" + p.Name
}

// MemberExpansion controls how group membership is resolved.
type MemberExpansion int

const (
	// ExpansionNone resolves only the direct member references.
	ExpansionNone MemberExpansion = iota

	// ExpansionExpanded resolves direct and transitive members, with each
	// returned group carrying its member references expanded one level.
	ExpansionExpanded
)

// String returns the string representation of the expansion mode.
func (e MemberExpansion) String() string {
	switch e {
	case ExpansionNone:
		return "none"
	case ExpansionExpanded:
		return "expanded"
	default:
		return "unknown"
	}
}

// Client enumerates the organizational hierarchy and resolves principals.
// Implementations do not retry failed calls; callers decide how a failure
// propagates.
type Client interface {
	// Connect establishes and authenticates the directory session.
	Connect(ctx context.Context) error

	// Close releases the directory session.
	Close() error

	// ListCollections enumerates the project collections on the server.
	ListCollections(ctx context.Context) ([]CollectionRef, error)

	// ListProjects enumerates the projects of one collection.
	ListProjects(ctx context.Context, collection CollectionRef) ([]ProjectRef, error)

	// ListProjectGroups enumerates the application security groups of one
	// project. All returned identities have KindGroup.
	ListProjectGroups(ctx context.Context, project ProjectRef) ([]Identity, error)

	// ResolveMembers resolves the membership of a group according to the
	// requested expansion mode.
	ResolveMembers(ctx context.Context, group Identity, expansion MemberExpansion) ([]Identity, error)

	// ResolveIdentity resolves a single member reference with no
	// membership expansion.
	ResolveIdentity(ctx context.Context, ref string) (Identity, error)
}
