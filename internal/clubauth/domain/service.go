package domain

import (
	"fmt"
	"strings"
)

// Service identifies the vendor system a session authenticates against.
type Service string

const (
	ServiceClubOS  Service = "clubos"
	ServiceClubHub Service = "clubhub"
)

// ErrUnknownService is returned when a service name is not recognised.
var ErrUnknownService = fmt.Errorf("unknown service")

// ParseService normalises and validates a service name.
func ParseService(s string) (Service, error) {
	switch Service(strings.ToLower(strings.TrimSpace(s))) {
	case ServiceClubOS:
		return ServiceClubOS, nil
	case ServiceClubHub:
		return ServiceClubHub, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownService, s)
	}
}

// DisplayName is the vendor name used in user facing failures.
func (s Service) DisplayName() string {
	switch s {
	case ServiceClubOS:
		return "ClubOS"
	case ServiceClubHub:
		return "ClubHub"
	default:
		return string(s)
	}
}

func (s Service) String() string { return string(s) }

// UsernameSecret and PasswordSecret name the secrets holding the
// credential pair for a service.
func (s Service) UsernameSecret() string {
	if s == ServiceClubHub {
		return "clubhub-email"
	}
	return string(s) + "-username"
}

func (s Service) PasswordSecret() string {
	return string(s) + "-password"
}
