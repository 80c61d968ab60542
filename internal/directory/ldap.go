package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Active Directory extensible matching rule OIDs.
const (
	matchingRuleBitAnd  = "1.2.840.113556.1.4.803"  // LDAP_MATCHING_RULE_BIT_AND
	matchingRuleInChain = "1.2.840.113556.1.4.1941" // LDAP_MATCHING_RULE_IN_CHAIN
)

// groupTypeFlagSecurity is the ADS_GROUP_TYPE_SECURITY_ENABLED bit
// (0x80000000) as its unsigned decimal form for filter matching.
const groupTypeFlagSecurity = "2147483648"

// identityAttributes are the attributes requested for every principal lookup.
var identityAttributes = []string{
	"objectClass", "objectSid", "distinguishedName",
	"sAMAccountName", "displayName", "cn", "mail",
}

// groupAttributes additionally request the direct member references.
var groupAttributes = append(append([]string{}, identityAttributes...), "member")

// ConnectionConfig holds configuration for the LDAP directory connection.
type ConnectionConfig struct {
	URLs   []string // LDAP URLs, tried in order
	BaseDN string   // Root of the organizational hierarchy
	Domain string   // Authentication domain stamped onto identities; derived from the base DN when empty

	// Authentication settings
	Username       string // Username for simple bind or Kerberos
	Password       string // Password for simple bind or Kerberos
	KerberosRealm  string // Kerberos realm for GSSAPI authentication
	KerberosKeytab string // Path to Kerberos keytab file
	KerberosCCache string // Path to Kerberos credential cache
	KerberosConfig string // Path to krb5.conf
	KerberosSPN    string // Explicit service principal, overrides host-derived SPN

	// TLS settings
	UseTLS    bool        // Upgrade plain connections with StartTLS
	TLSConfig *tls.Config // Custom TLS configuration

	// Search settings
	Timeout  time.Duration // Per-operation time limit
	PageSize uint32        // Paged-search page size, 0 disables paging
}

// DefaultConnectionConfig returns a secure default configuration.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Timeout:  30 * time.Second,
		PageSize: 1000,
		UseTLS:   true,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // Username/password authentication
	AuthMethodKerberos                     // GSSAPI/Kerberos authentication
)

// String returns the string representation of the authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// GetAuthMethod determines the authentication method from the configuration.
func (c *ConnectionConfig) GetAuthMethod() AuthMethod {
	if c.KerberosRealm != "" {
		return AuthMethodKerberos
	}
	return AuthMethodSimpleBind
}

// Validate checks that the configuration is sufficient to connect.
func (c *ConnectionConfig) Validate() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("at least one directory URL is required")
	}
	if c.BaseDN == "" {
		return fmt.Errorf("base DN is required")
	}
	if c.GetAuthMethod() == AuthMethodSimpleBind && c.Username == "" {
		return fmt.Errorf("username is required for simple bind")
	}
	return nil
}

// ldapConn abstracts the subset of *ldap.Conn used by the directory.
type ldapConn interface {
	Bind(username, password string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzID string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	SetTimeout(timeout time.Duration)
	Close() error
}

// dialFunc establishes a connection to one LDAP URL.
type dialFunc func(cfg *ConnectionConfig, rawURL string) (ldapConn, error)

// LDAPDirectory implements Client against an Active Directory server that
// hosts the platform hierarchy as nested organizational units: collections
// directly under the base DN, projects one level below each collection, and
// application security groups inside each project subtree.
type LDAPDirectory struct {
	config *ConnectionConfig
	sid    *SIDHandler
	conn   ldapConn
	dial   dialFunc
}

// NewLDAPDirectory creates a directory client from the given configuration.
func NewLDAPDirectory(config *ConnectionConfig) (*LDAPDirectory, error) {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid directory configuration: %w", err)
	}

	return &LDAPDirectory{
		config: config,
		sid:    NewSIDHandler(),
		dial:   dialLDAP,
	}, nil
}

// dialLDAP establishes a single LDAP connection, upgrading to TLS when
// configured.
func dialLDAP(cfg *ConnectionConfig, rawURL string) (ldapConn, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid LDAP URL %q: %w", rawURL, err)
	}

	var conn *ldap.Conn
	if parsed.Scheme == "ldaps" {
		conn, err = ldap.DialURL(rawURL, ldap.DialWithTLSConfig(cfg.TLSConfig))
	} else {
		conn, err = ldap.DialURL(rawURL)
		if err == nil && cfg.UseTLS {
			if tlsErr := conn.StartTLS(cfg.TLSConfig); tlsErr != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("StartTLS failed: %w", tlsErr)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	conn.SetTimeout(cfg.Timeout)
	return conn, nil
}

// Connect dials the first reachable configured URL and authenticates.
func (d *LDAPDirectory) Connect(ctx context.Context) error {
	var lastErr error

	for _, rawURL := range d.config.URLs {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := d.dial(d.config, rawURL)
		if err != nil {
			lastErr = err
			continue
		}

		if err := d.authenticate(conn, rawURL); err != nil {
			_ = conn.Close()
			return WrapError("authenticate", err)
		}

		d.conn = conn
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no directory URLs configured")
	}
	return WrapError("connect", lastErr)
}

// authenticate binds the connection using the configured method.
func (d *LDAPDirectory) authenticate(conn ldapConn, rawURL string) error {
	switch d.config.GetAuthMethod() {
	case AuthMethodKerberos:
		return performKerberosAuth(conn, d.config, rawURL)
	default:
		return conn.Bind(d.config.Username, d.config.Password)
	}
}

// Close releases the directory connection.
func (d *LDAPDirectory) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// search executes one LDAP search, paged when a page size is configured.
func (d *LDAPDirectory) search(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if d.conn == nil {
		return nil, fmt.Errorf("directory is not connected")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.config.PageSize > 0 {
		return d.conn.SearchWithPaging(req, d.config.PageSize)
	}
	return d.conn.Search(req)
}

// timeLimit returns the configured per-operation time limit in seconds.
func (d *LDAPDirectory) timeLimit() int {
	return int(d.config.Timeout.Seconds())
}

// ListCollections enumerates the project collections: organizational units
// directly under the base DN.
func (d *LDAPDirectory) ListCollections(ctx context.Context) ([]CollectionRef, error) {
	req := ldap.NewSearchRequest(
		d.config.BaseDN,
		ldap.ScopeSingleLevel,
		ldap.NeverDerefAliases,
		0,
		d.timeLimit(),
		false,
		"(objectClass=organizationalUnit)",
		[]string{"ou", "distinguishedName"},
		nil,
	)

	result, err := d.search(ctx, req)
	if err != nil {
		return nil, WrapError("list_collections", err)
	}

	collections := make([]CollectionRef, 0, len(result.Entries))
	for _, entry := range result.Entries {
		collections = append(collections, CollectionRef{
			Name: entry.GetAttributeValue("ou"),
			Path: entry.DN,
		})
	}

	return collections, nil
}

// ListProjects enumerates the projects of one collection: organizational
// units directly under the collection subtree.
func (d *LDAPDirectory) ListProjects(ctx context.Context, collection CollectionRef) ([]ProjectRef, error) {
	if collection.Path == "" {
		return nil, fmt.Errorf("collection path cannot be empty")
	}

	req := ldap.NewSearchRequest(
		collection.Path,
		ldap.ScopeSingleLevel,
		ldap.NeverDerefAliases,
		0,
		d.timeLimit(),
		false,
		"(objectClass=organizationalUnit)",
		[]string{"ou", "distinguishedName"},
		nil,
	)

	result, err := d.search(ctx, req)
	if err != nil {
		return nil, WrapError("list_projects", err)
	}

	projects := make([]ProjectRef, 0, len(result.Entries))
	for _, entry := range result.Entries {
		projects = append(projects, ProjectRef{
			Collection: collection.Name,
			Name:       entry.GetAttributeValue("ou"),
			Path:       entry.DN,
		})
	}

	return projects, nil
}

// ListProjectGroups enumerates the application security groups of one
// project: security-enabled groups anywhere in the project subtree.
func (d *LDAPDirectory) ListProjectGroups(ctx context.Context, project ProjectRef) ([]Identity, error) {
	if project.Path == "" {
		return nil, fmt.Errorf("project path cannot be empty")
	}

	filter := fmt.Sprintf("(&(objectClass=group)(groupType:%s:=%s))",
		matchingRuleBitAnd, groupTypeFlagSecurity)

	req := ldap.NewSearchRequest(
		project.Path,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		d.timeLimit(),
		false,
		filter,
		groupAttributes,
		nil,
	)

	result, err := d.search(ctx, req)
	if err != nil {
		return nil, WrapError("list_project_groups", err)
	}

	groups := make([]Identity, 0, len(result.Entries))
	for _, entry := range result.Entries {
		identity := d.entryToIdentity(entry, true)
		if identity.CanonicalID == "" {
			// Entries without a SID cannot participate in deduplication
			continue
		}
		groups = append(groups, identity)
	}

	return groups, nil
}

// ResolveMembers resolves the membership of a group. Expanded resolution
// returns direct and transitive members via the in-chain matching rule, each
// returned group carrying its member references expanded one level. None
// resolves only the direct member references.
func (d *LDAPDirectory) ResolveMembers(ctx context.Context, group Identity, expansion MemberExpansion) ([]Identity, error) {
	if group.Ref == "" {
		return nil, fmt.Errorf("group reference cannot be empty")
	}

	if expansion == ExpansionNone {
		return d.resolveDirectMembers(ctx, group)
	}

	filter := fmt.Sprintf("(memberOf:%s:=%s)",
		matchingRuleInChain, ldap.EscapeFilter(group.Ref))

	req := ldap.NewSearchRequest(
		d.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		d.timeLimit(),
		false,
		filter,
		groupAttributes,
		nil,
	)

	result, err := d.search(ctx, req)
	if err != nil {
		return nil, WrapError("resolve_members", err)
	}

	members := make([]Identity, 0, len(result.Entries))
	for _, entry := range result.Entries {
		members = append(members, d.entryToIdentity(entry, true))
	}

	return members, nil
}

// resolveDirectMembers resolves each direct member reference individually.
func (d *LDAPDirectory) resolveDirectMembers(ctx context.Context, group Identity) ([]Identity, error) {
	members := make([]Identity, 0, len(group.MemberIDs))
	for _, ref := range group.MemberIDs {
		identity, err := d.ResolveIdentity(ctx, ref)
		if err != nil {
			return nil, err
		}
		members = append(members, identity)
	}
	return members, nil
}

// ResolveIdentity resolves a single member reference with no membership
// expansion.
func (d *LDAPDirectory) ResolveIdentity(ctx context.Context, ref string) (Identity, error) {
	if ref == "" {
		return Identity{}, fmt.Errorf("identity reference cannot be empty")
	}

	req := ldap.NewSearchRequest(
		ref,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1,
		d.timeLimit(),
		false,
		"(objectClass=*)",
		identityAttributes,
		nil,
	)

	result, err := d.search(ctx, req)
	if err != nil {
		return Identity{}, WrapError("resolve_identity", err)
	}

	if len(result.Entries) == 0 {
		return Identity{}, &DirectoryError{
			Operation: "resolve_identity",
			Category:  ErrorCategoryNotFound,
			Message:   "principal not found",
			Ref:       ref,
		}
	}

	return d.entryToIdentity(result.Entries[0], false), nil
}

// entryToIdentity converts an LDAP entry to an Identity. Member references
// are mapped only for group entries and only when requested.
func (d *LDAPDirectory) entryToIdentity(entry *ldap.Entry, includeMembers bool) Identity {
	kind := KindUser
	for _, class := range entry.GetAttributeValues("objectClass") {
		if strings.EqualFold(class, "group") {
			kind = KindGroup
			break
		}
	}

	identity := Identity{
		Kind:        kind,
		CanonicalID: d.sid.ExtractSIDSafe(entry),
		Ref:         entry.DN,
		Domain:      d.domainFor(entry),
		AccountName: entry.GetAttributeValue("sAMAccountName"),
		DisplayName: entry.GetAttributeValue("displayName"),
		MailAddress: entry.GetAttributeValue("mail"),
	}

	if identity.DisplayName == "" {
		identity.DisplayName = entry.GetAttributeValue("cn")
	}

	if includeMembers && kind == KindGroup {
		identity.MemberIDs = entry.GetAttributeValues("member")
	}

	return identity
}

// domainFor returns the configured domain label, falling back to the first
// domain component of the entry DN.
func (d *LDAPDirectory) domainFor(entry *ldap.Entry) string {
	if d.config.Domain != "" {
		return d.config.Domain
	}

	parsed, err := ldap.ParseDN(entry.DN)
	if err != nil {
		return ""
	}

	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "dc") {
				return strings.ToUpper(attr.Value)
			}
		}
	}

	return ""
}
