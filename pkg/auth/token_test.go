package auth

import (
	"testing"
	"time"

	"github.com/hermagulator/shopbot/pkg/config"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "shopbot",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()

	payload := AccessTokenPayload{
		UserID:  42,
		IsAdmin: true,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != 42 {
		t.Fatalf("expected user_id 42, got %d", claims.UserID)
	}
	if !claims.IsAdmin {
		t.Fatalf("admin flag not preserved")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "shopbot",
		ExpirationMinutes: 10,
	}
	now := time.Now()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: 7})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	wrong := cfg
	wrong.Secret = "other-secret"
	if _, err := ParseAccessToken(wrong, token); err == nil {
		t.Fatalf("expected signature validation to fail")
	}
}

func TestMintAccessTokenRejectsBadPayloads(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "shopbot", ExpirationMinutes: 10}

	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: 0}); err == nil {
		t.Fatalf("expected error for non-positive user id")
	}

	missingSecret := cfg
	missingSecret.Secret = ""
	if _, err := MintAccessToken(missingSecret, time.Now(), AccessTokenPayload{UserID: 1}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}
