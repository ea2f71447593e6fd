package store

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"native-exporter/internal/worker"
)

func TestNewRawKey(t *testing.T) {
	live, err := NewRawKey("live")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(live, "sk_live_"))
	require.Len(t, live, len("sk_live_")+48)

	other, err := NewRawKey("live")
	require.NoError(t, err)
	require.NotEqual(t, live, other)

	_, err = NewRawKey("prod")
	require.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	require.Equal(t, "sk_test_0123", KeyPrefix("sk_test_0123456789abcdef"))
	require.Equal(t, "short", KeyPrefix("short"))
}

// openTestStore connects to STORE_TEST_DSN, a disposable MySQL database
// opened with parseTime=true.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("STORE_TEST_DSN")
	if dsn == "" {
		t.Skip("STORE_TEST_DSN not set")
	}
	st, err := NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.InitSchema())
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_UsersAndKeys(t *testing.T) {
	st := openTestStore(t)
	email := "user-" + time.Now().Format("150405.000000") + "@example.com"

	require.NoError(t, st.CreateUser(email, "hunter22"))
	require.ErrorIs(t, st.CreateUser(email, "again"), ErrUserExists)

	user, err := st.AuthenticateUser(email, "hunter22")
	require.NoError(t, err)
	_, err = st.AuthenticateUser(email, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	raw, err := st.CreateAPIKey(user.ID, "test")
	require.NoError(t, err)

	key, err := st.VerifyAPIKey(raw)
	require.NoError(t, err)
	require.Equal(t, user.ID, key.UserID)
	require.Equal(t, "test", key.Type)

	_, err = st.VerifyAPIKey(raw[:len(raw)-1] + "x")
	require.ErrorIs(t, err, ErrInvalidAPIKey)

	keys, err := st.ListAPIKeys(user.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, KeyPrefix(raw), keys[0].KeyPrefix)
}

func TestStore_JobHistory(t *testing.T) {
	st := openTestStore(t)
	email := "jobs-" + time.Now().Format("150405.000000") + "@example.com"

	info := worker.JobInfo{
		ID:         "00000000-0000-4000-8000-" + time.Now().Format("150405000000"),
		Status:     worker.StatusProcessing,
		SourceKind: worker.SourceFile,
		SourceKey:  "in/a.native",
		Format:     "csv",
		Email:      email,
		Submitted:  time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, st.SaveJob(info))

	info.Status = worker.StatusCompleted
	info.Rows = 42
	info.Finished = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, st.SaveJob(info))

	jobs, err := st.ListJobs(email, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, worker.StatusCompleted, jobs[0].Status)
	require.Equal(t, int64(42), jobs[0].Rows)
	require.True(t, jobs[0].Started.IsZero())
	require.False(t, jobs[0].Finished.IsZero())
}
