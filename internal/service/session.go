package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/citmax/central-assinante-go/internal/domain"
)

// ============================================================
// SESSÃO DO PORTAL
// ============================================================
// O backend é stateless sobre o SGP: toda chamada precisa reapresentar
// cpfcnpj+senha do assinante. Em vez de guardar sessão em memória, a senha
// viaja DENTRO do token JWT, selada com XChaCha20-Poly1305. O token fica
// opaco para o cliente; só este processo consegue abrir o selo.

// Session is the authenticated subscriber identity carried by a token.
type Session struct {
	CpfCnpj    string
	Password   string
	ContractID string
	Name       string
}

type sessionClaims struct {
	CpfCnpj        string `json:"cpf"`
	ContractID     string `json:"cid"`
	Name           string `json:"name"`
	SealedPassword string `json:"spw"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies portal session tokens.
type SessionManager struct {
	secret  []byte
	sealKey [chacha20poly1305.KeySize]byte
	ttl     time.Duration
}

// NewSessionManager derives the seal key from the configured string. An
// empty seal key falls back to the JWT secret so local dev needs one less
// variable.
func NewSessionManager(jwtSecret, sealKey string, ttl time.Duration) *SessionManager {
	if sealKey == "" {
		sealKey = jwtSecret
	}
	return &SessionManager{
		secret:  []byte(jwtSecret),
		sealKey: sha256.Sum256([]byte(sealKey)),
		ttl:     ttl,
	}
}

// Issue signs a token binding the subscriber to one selected contract.
func (m *SessionManager) Issue(sess Session) (string, error) {
	sealed, err := m.seal(sess.Password)
	if err != nil {
		return "", fmt.Errorf("seal password: %w", err)
	}

	now := time.Now()
	claims := sessionClaims{
		CpfCnpj:        sess.CpfCnpj,
		ContractID:     sess.ContractID,
		Name:           sess.Name,
		SealedPassword: sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.CpfCnpj,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses a token and unseals the subscriber password.
func (m *SessionManager) Verify(token string) (Session, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, &domain.ErrUnauthorized{Message: "sessão inválida ou expirada"}
	}

	password, err := m.unseal(claims.SealedPassword)
	if err != nil {
		return Session{}, &domain.ErrUnauthorized{Message: "sessão inválida ou expirada"}
	}

	return Session{
		CpfCnpj:    claims.CpfCnpj,
		Password:   password,
		ContractID: claims.ContractID,
		Name:       claims.Name,
	}, nil
}

func (m *SessionManager) seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(m.sealKey[:])
	if err != nil {
		return "", err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (m *SessionManager) unseal(encoded string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("sealed payload too short")
	}

	aead, err := chacha20poly1305.NewX(m.sealKey[:])
	if err != nil {
		return "", err
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
