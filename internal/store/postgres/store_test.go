package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/qaroom/internal/store"
	"github.com/cwrk-planet/qaroom/internal/store/postgres"
	"github.com/cwrk-planet/qaroom/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	dsn := os.Getenv("QAROOM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QAROOM_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.RemoteStore {
		s, err := postgres.Open(context.Background(), dsn)
		require.NoError(t, err)
		_, err = s.DB().ExecContext(context.Background(), "TRUNCATE rooms")
		require.NoError(t, err)
		return s
	})
}
