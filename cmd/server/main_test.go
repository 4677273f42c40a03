package main

import (
	"testing"

	"vyapaar/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	for _, secret := range []string{"", "short", "0123456789abcdef0123456789abcde"} {
		if err := validateSecurityConfig(config.Config{AuthSecret: secret}); err == nil {
			t.Fatalf("expected secret %q to be rejected", secret)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
