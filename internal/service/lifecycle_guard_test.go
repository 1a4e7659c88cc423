package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/qaroom/internal/domain"
)

func TestCheckOpenForAdmin(t *testing.T) {
	svc, st := setup(t)
	guard := NewLifecycleGuard(st)

	id, err := svc.CreateRoom(ctx, "Demo", ann.ID)
	require.NoError(t, err)

	status, err := guard.CheckOpenForAdmin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)

	require.NoError(t, svc.CloseRoom(ctx, id))
	status, err = guard.CheckOpenForAdmin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, status)
	assert.Equal(t, "closed", status.String())

	_, err = guard.CheckOpenForAdmin(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestCheckJoin(t *testing.T) {
	svc, st := setup(t)
	guard := NewLifecycleGuard(st)

	open, err := svc.CreateRoom(ctx, "Open", ann.ID)
	require.NoError(t, err)
	closed, err := svc.CreateRoom(ctx, "Closed", ann.ID)
	require.NoError(t, err)
	require.NoError(t, svc.CloseRoom(ctx, closed))

	got, err := guard.CheckJoin(ctx, "  "+string(open)+" ")
	require.NoError(t, err)
	assert.Equal(t, open, got)

	_, err = guard.CheckJoin(ctx, string(closed))
	assert.ErrorIs(t, err, domain.ErrRoomClosed)

	_, err = guard.CheckJoin(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = guard.CheckJoin(ctx, "bad.code")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	got, err = guard.CheckJoin(ctx, "   ")
	assert.NoError(t, err)
	assert.Empty(t, got)
}
