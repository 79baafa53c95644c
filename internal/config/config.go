package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"dynupd/internal/model"
)

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// StdinTemplate holds the scripted stdin for one address family. The template
// must contain the {domain} and {ttl} placeholders plus the address
// placeholder for its family ({ipv4} or {ipv6}).
type StdinTemplate struct {
	Stdin string `yaml:"stdin"`
}

type UpdateProgramConfig struct {
	Bin                string        `yaml:"bin"`
	Args               []string      `yaml:"args"`
	InitialStdin       string        `yaml:"initial_stdin"`
	StdinPerZoneUpdate string        `yaml:"stdin_per_zone_update"`
	FinalStdin         string        `yaml:"final_stdin"`
	TimeoutSeconds     int           `yaml:"timeout_seconds"`
	IPv4               StdinTemplate `yaml:"ipv4"`
	IPv6               StdinTemplate `yaml:"ipv6"`
}

type RateLimitConfig struct {
	Disabled          bool `yaml:"disabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	BaseDN       string `yaml:"base_dn"`
	UserFilter   string `yaml:"user_filter"`
	UsernameAttr string `yaml:"username_attr"`
	StartTLS     bool   `yaml:"starttls"`
	SkipVerify   bool   `yaml:"skip_verify"`
}

type DomainEntry struct {
	Name          string `yaml:"name"`
	TTL           uint32 `yaml:"ttl"`
	IPv6PrefixLen int    `yaml:"ipv6_prefix_len"`
	IPv6Suffix    string `yaml:"ipv6_suffix"`
}

type UserEntry struct {
	Username   string        `yaml:"username"`
	Hash       string        `yaml:"hash"`
	AuthSource string        `yaml:"auth_source"` // "local" (default) or "ldap"
	Domains    []DomainEntry `yaml:"domains"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	UpdateProgram UpdateProgramConfig `yaml:"update_program"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	LDAP          LDAPConfig          `yaml:"ldap"`
	Users         []UserEntry         `yaml:"users"`

	table map[string]*model.User
}

// Load reads and validates the configuration. Everything the request path
// treats as a contract (prefix lengths in range, well-formed templates,
// recognizable password hashes, parseable suffixes) is rejected here, so
// request handling never sees a malformed table.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.UpdateProgram.TimeoutSeconds == 0 {
		cfg.UpdateProgram.TimeoutSeconds = 30
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 60
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 10
	}

	if err := validateUpdateProgram(&cfg.UpdateProgram); err != nil {
		return nil, err
	}
	if err := validateLDAP(&cfg.LDAP); err != nil {
		return nil, err
	}
	table, err := buildTable(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.table = table

	return &cfg, nil
}

// User looks up a user in the immutable table built at load time.
func (c *Config) User(username string) (*model.User, bool) {
	u, ok := c.table[username]
	return u, ok
}

func validateUpdateProgram(p *UpdateProgramConfig) error {
	if p.Bin == "" {
		return fmt.Errorf("update_program.bin is required")
	}
	if p.TimeoutSeconds < 0 {
		return fmt.Errorf("update_program.timeout_seconds must not be negative")
	}
	if err := checkTemplate("update_program.ipv4.stdin", p.IPv4.Stdin, "{ipv4}"); err != nil {
		return err
	}
	if err := checkTemplate("update_program.ipv6.stdin", p.IPv6.Stdin, "{ipv6}"); err != nil {
		return err
	}
	return nil
}

func checkTemplate(field, tmpl, addrPlaceholder string) error {
	if tmpl == "" {
		return fmt.Errorf("%s is required", field)
	}
	for _, ph := range []string{"{domain}", "{ttl}", addrPlaceholder} {
		if !strings.Contains(tmpl, ph) {
			return fmt.Errorf("%s is missing the %s placeholder", field, ph)
		}
	}
	return nil
}

func validateLDAP(l *LDAPConfig) error {
	if !l.Enabled {
		return nil
	}
	if l.URL == "" {
		return fmt.Errorf("ldap.url is required when LDAP is enabled")
	}
	if l.BindDN == "" || l.BindPassword == "" {
		return fmt.Errorf("ldap.bind_dn and ldap.bind_password are required")
	}
	if l.BaseDN == "" {
		return fmt.Errorf("ldap.base_dn is required")
	}
	if l.UserFilter == "" {
		l.UserFilter = "(sAMAccountName=%s)"
	}
	if l.UsernameAttr == "" {
		l.UsernameAttr = "sAMAccountName"
	}
	if strings.HasPrefix(l.URL, "ldap://") && !l.StartTLS {
		fmt.Println("WARNING: LDAP is configured with ldap:// but StartTLS is disabled. Credentials will be sent in cleartext.")
	}
	return nil
}

func buildTable(cfg *Config) (map[string]*model.User, error) {
	table := make(map[string]*model.User, len(cfg.Users))

	for i, u := range cfg.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("users[%d]: username is required", i)
		}
		if _, dup := table[u.Username]; dup {
			return nil, fmt.Errorf("duplicate user %q", u.Username)
		}

		source := u.AuthSource
		if source == "" {
			source = "local"
		}
		switch source {
		case "local":
			if !recognizedHash(u.Hash) {
				return nil, fmt.Errorf("user %q: hash is not a recognized argon2 or bcrypt encoding", u.Username)
			}
		case "ldap":
			if !cfg.LDAP.Enabled {
				return nil, fmt.Errorf("user %q: auth_source is ldap but LDAP is not enabled", u.Username)
			}
		default:
			return nil, fmt.Errorf("user %q: invalid auth_source %q", u.Username, source)
		}

		domains := make([]model.Domain, 0, len(u.Domains))
		seen := make(map[string]bool, len(u.Domains))
		for _, d := range u.Domains {
			md, err := parseDomain(u.Username, d)
			if err != nil {
				return nil, err
			}
			if seen[md.Name] {
				return nil, fmt.Errorf("user %q: duplicate domain %q", u.Username, md.Name)
			}
			seen[md.Name] = true
			domains = append(domains, md)
		}

		table[u.Username] = &model.User{
			Username:   u.Username,
			Hash:       u.Hash,
			AuthSource: source,
			Domains:    domains,
		}
	}

	return table, nil
}

func parseDomain(username string, d DomainEntry) (model.Domain, error) {
	if d.Name == "" {
		return model.Domain{}, fmt.Errorf("user %q: domain name is required", username)
	}
	if d.TTL == 0 {
		return model.Domain{}, fmt.Errorf("user %q, domain %q: ttl must be positive", username, d.Name)
	}
	if d.IPv6PrefixLen < 0 || d.IPv6PrefixLen > 128 {
		return model.Domain{}, fmt.Errorf("user %q, domain %q: ipv6_prefix_len %d is out of range 0..128",
			username, d.Name, d.IPv6PrefixLen)
	}

	md := model.Domain{
		Name:          d.Name,
		TTL:           d.TTL,
		IPv6PrefixLen: uint8(d.IPv6PrefixLen),
	}

	// The suffix only matters when the AAAA record can be updated at all.
	if d.IPv6PrefixLen > 0 {
		addr, err := netip.ParseAddr(d.IPv6Suffix)
		if err != nil {
			return model.Domain{}, fmt.Errorf("user %q, domain %q: invalid ipv6_suffix %q: %w",
				username, d.Name, d.IPv6Suffix, err)
		}
		if addr.Is4() {
			return model.Domain{}, fmt.Errorf("user %q, domain %q: ipv6_suffix %q is not an IPv6 address",
				username, d.Name, d.IPv6Suffix)
		}
		md.IPv6Suffix = addr
	}

	return md, nil
}

// recognizedHash reports whether the stored hash uses one of the supported
// encodings. Full parsing happens in the auth package at startup.
func recognizedHash(hash string) bool {
	return strings.HasPrefix(hash, "$argon2id$") ||
		strings.HasPrefix(hash, "$argon2i$") ||
		strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
