package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
)

type fakeVerifier struct {
	claims *models.AccessClaims
}

func (f *fakeVerifier) VerifyToken(token string) (*models.AccessClaims, error) {
	if token != "good" {
		return nil, domain.ErrUnauthorized
	}
	return f.claims, nil
}

func (f *fakeVerifier) Close() error { return nil }

func TestResolve(t *testing.T) {
	verifier := &fakeVerifier{claims: &models.AccessClaims{ObjectID: "oid-7", PreferredUsername: "carol@contoso.com"}}

	tests := []struct {
		name        string
		header      http.Header
		allowSample bool
		wantID      string
		wantName    string
		wantToken   string
		wantErr     error
	}{
		{
			name: "platform headers",
			header: http.Header{
				HeaderPrincipalID:   {"p-1"},
				HeaderPrincipalName: {"alice@contoso.com"},
				HeaderAADToken:      {"aad"},
				"Authorization":     {"Bearer good"},
			},
			wantID: "p-1", wantName: "alice@contoso.com", wantToken: "aad",
		},
		{
			name:   "bearer token",
			header: http.Header{"Authorization": {"Bearer good"}},
			wantID: "oid-7", wantName: "carol@contoso.com",
		},
		{
			name:    "bad bearer token",
			header:  http.Header{"Authorization": {"Bearer bad"}},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:        "sample user",
			header:      http.Header{},
			allowSample: true,
			wantID:      SampleUserID, wantName: SampleUserName,
		},
		{
			name:    "anonymous",
			header:  http.Header{"Authorization": {"Basic abc"}},
			wantErr: domain.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(verifier, tt.allowSample, slog.New(slog.NewTextHandler(io.Discard, nil)))
			user, err := r.Resolve(context.Background(), tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if user.PrincipalID != tt.wantID || user.Name != tt.wantName || user.AccessToken != tt.wantToken {
				t.Errorf("user = %+v", user)
			}
		})
	}
}
