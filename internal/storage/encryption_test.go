// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTokenEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"empty", "", true},
		{"too short", "short-secret", true},
		{"minimum length", strings.Repeat("x", MinSecretLength), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenEncryptor(tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTokenEncryptor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewTokenEncryptor(""); !errors.Is(err, ErrEncryptionKeyMissing) {
		t.Errorf("empty secret error = %v, want ErrEncryptionKeyMissing", err)
	}
}

func TestTokenEncryptorRoundTrip(t *testing.T) {
	enc, err := NewTokenEncryptor(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := enc.Encrypt("EAAG-long-lived-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if strings.Contains(sealed, "EAAG") {
		t.Error("ciphertext contains plaintext")
	}

	again, _ := enc.Encrypt("EAAG-long-lived-token")
	if again == sealed {
		t.Error("two encryptions produced the same ciphertext")
	}

	plain, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plain != "EAAG-long-lived-token" {
		t.Errorf("Decrypt() = %q", plain)
	}

	if got, _ := enc.Encrypt(""); got != "" {
		t.Errorf("Encrypt(\"\") = %q, want empty", got)
	}
}

func TestTokenEncryptorRejectsTampering(t *testing.T) {
	enc, _ := NewTokenEncryptor(testSecret)
	other, _ := NewTokenEncryptor(strings.Repeat("z", 40))

	sealed, _ := enc.Encrypt("token")
	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		enc     *TokenEncryptor
		input   string
		wantErr error
	}{
		{"flipped bit", enc, tampered, ErrDecryptionFailed},
		{"wrong key", other, sealed, ErrDecryptionFailed},
		{"not base64", enc, "%%%", ErrInvalidCiphertext},
		{"too short", enc, base64.StdEncoding.EncodeToString([]byte("abc")), ErrInvalidCiphertext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.enc.Decrypt(tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
