package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Secret:    "test-secret-please-rotate",
		AccessTTL: time.Minute,
		Issuer:    "orderhub",
		Audience:  "back-office",
	})
	require.NoError(t, err)
	return svc
}

func TestIssueAndParseToken(t *testing.T) {
	svc := testService(t)
	token, err := svc.issueToken(Staff{ID: "u1", TenantID: "t1", Role: "manager"})
	require.NoError(t, err)

	claims, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.StaffID)
	require.Equal(t, "t1", claims.TenantID)
	require.Equal(t, "manager", claims.Role)
}

func TestParseExpiredToken(t *testing.T) {
	svc := testService(t)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := svc.issueToken(Staff{ID: "u1", TenantID: "t1"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseTamperedToken(t *testing.T) {
	svc := testService(t)
	token, err := svc.issueToken(Staff{ID: "u1", TenantID: "t1"})
	require.NoError(t, err)

	other, err := NewService(Config{Secret: "a-different-secret", Issuer: "orderhub", Audience: "back-office"})
	require.NoError(t, err)
	_, err = other.ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	svc := testService(t)
	_, err := svc.ParseAccessToken("")
	require.Error(t, err)
	_, err = svc.ParseAccessToken("not.a.token")
	require.Error(t, err)
}
