package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"waflow/internal/models"
	"waflow/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
)

func TestCheckSessionsReconciles(t *testing.T) {
	tests := []struct {
		name          string
		account       models.Account
		session       *types.Session
		probeErr      error
		wantConnected bool
		wantOffline   bool
	}{
		{
			name:          "offline account with working session comes back",
			account:       models.Account{ID: 1, Status: models.AccountStatusOffline},
			session:       &types.Session{Status: types.SessionStatusWorking},
			wantConnected: true,
		},
		{
			name:        "active account with stopped session goes offline",
			account:     models.Account{ID: 1, Status: models.AccountStatusActive},
			session:     &types.Session{Status: types.SessionStatusStopped},
			wantOffline: true,
		},
		{
			name:    "active account with working session untouched",
			account: models.Account{ID: 1, Status: models.AccountStatusActive},
			session: &types.Session{Status: types.SessionStatusWorking},
		},
		{
			name:        "unreachable gateway takes active account offline",
			account:     models.Account{ID: 1, Status: models.AccountStatusActive},
			probeErr:    errors.New("connection refused"),
			wantOffline: true,
		},
		{
			name:    "suspended account is never probed",
			account: models.Account{ID: 1, Status: models.AccountStatusSuspended},
			session: &types.Session{Status: types.SessionStatusWorking},
		},
		{
			name:    "pending account is skipped",
			account: models.Account{ID: 1, Status: models.AccountStatusPending},
			session: &types.Session{Status: types.SessionStatusWorking},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var connected, offline bool
			accounts := &fakeAccountStore{
				listAccounts: func(ctx context.Context) ([]models.Account, error) {
					return []models.Account{tt.account}, nil
				},
				setAccountConnected: func(ctx context.Context, id int64, at time.Time) error {
					connected = true
					return nil
				},
				setAccountOffline: func(ctx context.Context, id int64) error {
					offline = true
					return nil
				},
			}
			client := &fakeGatewayClient{
				getSessionStatus: func(ctx context.Context) (*types.Session, error) {
					if tt.probeErr != nil {
						return nil, tt.probeErr
					}
					return tt.session, nil
				},
			}
			monitor := NewSessionMonitor(accounts, &fakeGatewayProvider{client: client}, time.Minute, testLogger())

			monitor.checkSessions(context.Background())
			assert.Equal(t, tt.wantConnected, connected)
			assert.Equal(t, tt.wantOffline, offline)
		})
	}
}
