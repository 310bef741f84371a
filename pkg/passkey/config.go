package passkey

import (
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config describes the relying party. RPID must exactly match the serving
// domain and RPOrigins the scheme+host the ceremony is performed against.
type Config struct {
	RPID          string   `yaml:"id"`
	RPDisplayName string   `yaml:"display_name"`
	RPOrigins     []string `yaml:"origins"`

	// Timeout is the ceremony timeout advertised to clients.
	Timeout time.Duration `yaml:"timeout"`

	// UserVerification is "required", "preferred", or "discouraged".
	UserVerification string `yaml:"user_verification"`

	// ResidentKey is "required", "preferred", or "discouraged".
	ResidentKey string `yaml:"resident_key"`
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("relying party id is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("relying party display name is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one relying party origin is required")
	}
	switch c.UserVerification {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}
	switch c.ResidentKey {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid resident key requirement: %s", c.ResidentKey)
	}
	return nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.ResidentKey == "" {
		c.ResidentKey = "preferred"
	}
}

// toWebAuthnConfig converts the Config for the verification primitive.
func (c *Config) toWebAuthnConfig() *webauthn.Config {
	cfg := &webauthn.Config{
		RPID:          c.RPID,
		RPDisplayName: c.RPDisplayName,
		RPOrigins:     c.RPOrigins,
	}

	if c.Timeout > 0 {
		cfg.Timeouts = webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    c.Timeout,
				TimeoutUVD: c.Timeout,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    c.Timeout,
				TimeoutUVD: c.Timeout,
			},
		}
	}

	cfg.AuthenticatorSelection = protocol.AuthenticatorSelection{}

	switch c.UserVerification {
	case "required":
		cfg.AuthenticatorSelection.UserVerification = protocol.VerificationRequired
	case "preferred":
		cfg.AuthenticatorSelection.UserVerification = protocol.VerificationPreferred
	case "discouraged":
		cfg.AuthenticatorSelection.UserVerification = protocol.VerificationDiscouraged
	}

	switch c.ResidentKey {
	case "required":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementRequired
	case "preferred":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementPreferred
	case "discouraged":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementDiscouraged
	}

	return cfg
}
