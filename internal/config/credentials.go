package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"bgm-radar/pkg/errors"
)

// CredentialKind distinguishes API keys from OAuth access tokens.
type CredentialKind string

const (
	CredentialAPIKey     CredentialKind = "api_key"
	CredentialOAuthToken CredentialKind = "oauth_token"
)

// Credential authenticates Data API calls.
type Credential struct {
	Kind        CredentialKind
	APIKey      string
	TokenSource oauth2.TokenSource
	// Source names the strategy that produced the credential, for logs.
	Source string
}

// ClientOptions turns the credential into google api client options.
func (c Credential) ClientOptions() []option.ClientOption {
	switch c.Kind {
	case CredentialOAuthToken:
		return []option.ClientOption{option.WithTokenSource(c.TokenSource)}
	default:
		return []option.ClientOption{option.WithAPIKey(c.APIKey)}
	}
}

// CredentialStrategy yields a credential, or false when it has none to offer.
type CredentialStrategy struct {
	Name    string
	Resolve func() (Credential, bool)
}

// CredentialProvider tries its strategies in order.
type CredentialProvider struct {
	strategies []CredentialStrategy
}

// NewCredentialProvider returns a provider over the given strategies.
func NewCredentialProvider(strategies ...CredentialStrategy) *CredentialProvider {
	return &CredentialProvider{strategies: strategies}
}

// Resolve returns the first credential offered, or a configuration error.
func (p *CredentialProvider) Resolve() (Credential, error) {
	tried := make([]string, 0, len(p.strategies))
	for _, s := range p.strategies {
		if cred, ok := s.Resolve(); ok {
			if cred.Source == "" {
				cred.Source = s.Name
			}
			return cred, nil
		}
		tried = append(tried, s.Name)
	}
	return Credential{}, errors.NewConfigurationError(
		fmt.Sprintf("no valid YouTube credential found (tried: %s)", strings.Join(tried, ", ")), nil)
}

// ValidateAPIKey checks the shape of a Data API key.
func ValidateAPIKey(key string) error {
	if !strings.HasPrefix(key, "AIza") {
		return fmt.Errorf("api key must start with AIza")
	}
	if len(key) < 35 {
		return fmt.Errorf("api key too short: %d characters", len(key))
	}
	return nil
}

func apiKeyCredential(key string) (Credential, bool) {
	key = strings.TrimSpace(key)
	if ValidateAPIKey(key) != nil {
		return Credential{}, false
	}
	return Credential{Kind: CredentialAPIKey, APIKey: key}, true
}

// StaticAPIKey offers a fixed key, e.g. a tenant's own key.
func StaticAPIKey(name, key string) CredentialStrategy {
	return CredentialStrategy{
		Name:    name,
		Resolve: func() (Credential, bool) { return apiKeyCredential(key) },
	}
}

// EnvAPIKey reads a key from the named environment variable.
func EnvAPIKey(name string) CredentialStrategy {
	return CredentialStrategy{
		Name:    "env:" + name,
		Resolve: func() (Credential, bool) { return apiKeyCredential(os.Getenv(name)) },
	}
}

// FileAPIKey reads a key from the first line of a file.
func FileAPIKey(path string) CredentialStrategy {
	return CredentialStrategy{
		Name: "file:" + path,
		Resolve: func() (Credential, bool) {
			if path == "" {
				return Credential{}, false
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return Credential{}, false
			}
			line, _, _ := strings.Cut(string(data), "\n")
			return apiKeyCredential(line)
		},
	}
}

// StaticOAuthToken offers a bearer access token.
func StaticOAuthToken(name, token string) CredentialStrategy {
	return CredentialStrategy{
		Name: name,
		Resolve: func() (Credential, bool) {
			token = strings.TrimSpace(token)
			if token == "" {
				return Credential{}, false
			}
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
			return Credential{Kind: CredentialOAuthToken, TokenSource: ts}, true
		},
	}
}

// CredentialProvider builds the default lookup order: key variable, key file, OAuth token.
func (c *Config) CredentialProvider() *CredentialProvider {
	return NewCredentialProvider(
		StaticAPIKey("env:YOUTUBE_API_KEY", c.YouTubeAPIKey),
		FileAPIKey(c.YouTubeAPIKeyFile),
		StaticOAuthToken("env:YOUTUBE_OAUTH_TOKEN", c.YouTubeOAuthToken),
	)
}
