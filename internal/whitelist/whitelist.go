package whitelist

import (
	"strings"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// Checker restricts fetched messages to a set of sender domains
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new sender domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			normalizedDomains = append(normalizedDomains, domain)
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized sender checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// Allows reports whether a message from the given From header may be
// processed. An empty domain list allows every sender.
func (c *Checker) Allows(from string) bool {
	if len(c.domains) == 0 {
		return true
	}
	return c.IsWhitelisted(from)
}

// IsWhitelisted checks if the sender's domain is in the list. Subdomains of a
// listed domain match.
func (c *Checker) IsWhitelisted(from string) bool {
	domain := senderDomain(from)
	if domain == "" {
		return false
	}

	for _, whitelisted := range c.domains {
		if domain == whitelisted || strings.HasSuffix(domain, "."+whitelisted) {
			if c.logger != nil {
				c.logger.Debug("Sender domain is allowed",
					zap.String("domain", domain),
					zap.String("from", from))
			}
			return true
		}
	}

	return false
}

func senderDomain(from string) string {
	addr := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(addr[at+1:], "<> "))
}
