package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Webhook is an outside endpoint notified of marketplace events.
type Webhook struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	EndpointURL string    `json:"endpoint_url"`
	SecretKey   string    `json:"secret_key,omitempty"`
	IsActive    bool      `json:"is_active"`
	EventTypes  []string  `json:"event_types"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateWebhookRequest struct {
	Name        string   `json:"name"`
	EndpointURL string   `json:"endpoint_url"`
	EventTypes  []string `json:"event_types"`
}

type UpdateWebhookRequest struct {
	Name        *string `json:"name,omitempty"`
	EndpointURL *string `json:"endpoint_url,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Validate checks the request before a webhook is stored.
func (r CreateWebhookRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return InvalidInputs(errors.New("name is required"))
	}
	if err := validateEndpoint(r.EndpointURL); err != nil {
		return err
	}
	if len(r.EventTypes) == 0 {
		return InvalidInputs(errors.New("at least one event type is required"))
	}
	for _, p := range r.EventTypes {
		if !validPattern(p) {
			return InvalidInputs(fmt.Errorf("invalid event type pattern %q", p))
		}
	}
	return nil
}

func (r UpdateWebhookRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return InvalidInputs(errors.New("name must not be empty"))
	}
	if r.EndpointURL != nil {
		return validateEndpoint(*r.EndpointURL)
	}
	return nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return InvalidInputs(errors.New("endpoint_url must be an absolute http(s) URL"))
	}
	return nil
}

// validPattern accepts "*", "<Aggregate>.*" and "<Aggregate>.<Type>".
func validPattern(p string) bool {
	if p == "*" {
		return true
	}
	agg, typ, ok := strings.Cut(p, ".")
	return ok && agg != "" && typ != "" && !strings.Contains(typ, ".")
}

// MatchesEventType reports whether pattern selects the qualified event type.
func MatchesEventType(pattern, qualifiedType string) bool {
	if pattern == "*" || pattern == qualifiedType {
		return true
	}
	agg, ok := strings.CutSuffix(pattern, ".*")
	return ok && strings.HasPrefix(qualifiedType, agg+".")
}
