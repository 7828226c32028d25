package utils

import "testing"

func TestJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateJWT(secret, "user-1", "patient")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ValidateJWT(secret, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "patient" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT([]byte("secret-a"), "user-1", "patient")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateJWT([]byte("secret-b"), token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestGenerateJWTRequiresSecret(t *testing.T) {
	if _, err := GenerateJWT(nil, "user-1", "patient"); err == nil {
		t.Error("expected error for missing secret")
	}
}
