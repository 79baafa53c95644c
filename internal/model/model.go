package model

import "net/netip"

// User is one entry in the configuration table. The table is built once at
// startup and never mutated while serving.
type User struct {
	Username   string
	Hash       string
	AuthSource string // "local" or "ldap"
	Domains    []Domain
}

// Domain is a single record a user may update. IPv6PrefixLen == 0 means the
// AAAA record for this domain is never touched, regardless of request content.
type Domain struct {
	Name          string
	TTL           uint32
	IPv6PrefixLen uint8
	IPv6Suffix    netip.Addr
}

// UpdateRequest is the parsed form of one inbound update call. An address is
// absent when it is the zero netip.Addr (IsValid() == false). The cleartext
// password lives only for the duration of the request and is never logged.
type UpdateRequest struct {
	Username  string
	Password  string
	IPv4      netip.Addr
	IPv6      netip.Addr
	Domain    string // accepted for client compatibility, not used for resolution
	DualStack string // accepted for client compatibility
	LANPrefix netip.Prefix
}

// ResolvedUpdate is one (request, domain) pair with the addresses to publish.
// The IPv6 address has already been spliced with the domain's suffix.
type ResolvedUpdate struct {
	Domain string
	TTL    uint32
	IPv4   netip.Addr
	IPv6   netip.Addr
}
