package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

const tokenPrefix = "lc_"

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateToken issues a bearer token for owner. Only its hash is stored; the
// plaintext is returned once.
func (s *Store) CreateToken(owner, label string) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("token owner is required")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	token := tokenPrefix + hex.EncodeToString(buf)

	_, err := s.db.Exec(`INSERT INTO api_tokens (token_hash, owner_id, label, created_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), owner, label, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return token, nil
}

// ResolveToken returns the token's owner, or ErrNotFound.
func (s *Store) ResolveToken(token string) (APIToken, error) {
	var t APIToken
	var createdAt string
	err := s.db.QueryRow(`SELECT owner_id, label, created_at FROM api_tokens WHERE token_hash = ?`, hashToken(token)).
		Scan(&t.OwnerID, &t.Label, &createdAt)
	if err == sql.ErrNoRows {
		return APIToken{}, ErrNotFound
	}
	if err != nil {
		return APIToken{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return APIToken{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return t, nil
}
