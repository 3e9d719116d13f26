package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/model"
	"tablet-sync-backend/internal/session"
	"tablet-sync-backend/internal/store"
	"tablet-sync-backend/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	registry *Registry
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	gdb := testutil.NewDB(t)
	st := store.NewGormStore(gdb)
	testutil.Restaurant(t, gdb, 1, "Bistro")
	testutil.Restaurant(t, gdb, 2, "Diner")
	return &fixture{
		db:       gdb,
		registry: New(st, testutil.Hasher, testutil.Logger),
		sessions: session.NewManager(st, st, testutil.Hasher, 0, testutil.Logger),
	}
}

func ptr[T any](v T) *T { return &v }

func sessionCount(t *testing.T, gdb *gorm.DB, deviceID int64) int64 {
	var n int64
	require.NoError(t, gdb.Model(&model.DeviceSession{}).Where("device_id = ?", deviceID).Count(&n).Error)
	return n
}

func TestRegistry_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, secret, err := f.registry.Register(ctx, RegisterInput{Name: "  Pass  ", RestaurantID: ptr(int64(1)), CanPrint: true})
	require.NoError(t, err)

	assert.Len(t, d.UUID, 36)
	assert.Equal(t, "Pass", d.Name)
	assert.True(t, d.IsActive)
	assert.True(t, d.CanPrint)
	assert.True(t, strings.HasPrefix(secret, "dk_"))
	assert.NotContains(t, d.SecretHash, secret)
	require.NotNil(t, d.Restaurant)
	assert.Equal(t, "Bistro", d.Restaurant.Name)

	res, err := f.sessions.Login(ctx, d.UUID, secret)
	require.NoError(t, err)
	assert.Equal(t, "Bistro", res.Device.RestaurantName)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.registry.Register(ctx, RegisterInput{Name: "   "})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "is required", e.Fields["name"])

	_, _, err = f.registry.Register(ctx, RegisterInput{Name: "Pass", RestaurantID: ptr(int64(99))})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "does not exist", e.Fields["restaurant_id"])
}

func TestRegistry_UnassignedDeviceCannotLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, secret, err := f.registry.Register(ctx, RegisterInput{Name: "Spare"})
	require.NoError(t, err)

	_, err = f.sessions.Login(ctx, d.UUID, secret)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestRegistry_UpdateDeactivateEndsSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, secret, err := f.registry.Register(ctx, RegisterInput{Name: "Pass", RestaurantID: ptr(int64(1))})
	require.NoError(t, err)
	res, err := f.sessions.Login(ctx, d.UUID, secret)
	require.NoError(t, err)

	updated, err := f.registry.Update(ctx, d.UUID, UpdateInput{IsActive: ptr(false), Name: ptr("Old pass")})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Old pass", updated.Name)
	assert.Zero(t, sessionCount(t, f.db, d.ID))

	_, err = f.sessions.Validate(ctx, res.Token)
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))
}

func TestRegistry_UpdateReassignEndsSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, secret, err := f.registry.Register(ctx, RegisterInput{Name: "Pass", RestaurantID: ptr(int64(1))})
	require.NoError(t, err)
	_, err = f.sessions.Login(ctx, d.UUID, secret)
	require.NoError(t, err)

	// Same restaurant keeps the session.
	_, err = f.registry.Update(ctx, d.UUID, UpdateInput{RestaurantID: ptr(int64(1))})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessionCount(t, f.db, d.ID))

	updated, err := f.registry.Update(ctx, d.UUID, UpdateInput{RestaurantID: ptr(int64(2))})
	require.NoError(t, err)
	assert.Equal(t, int64(2), *updated.RestaurantID)
	assert.Zero(t, sessionCount(t, f.db, d.ID))

	updated, err = f.registry.Update(ctx, d.UUID, UpdateInput{ClearRestaurant: true})
	require.NoError(t, err)
	assert.Nil(t, updated.RestaurantID)

	_, err = f.registry.Update(ctx, d.UUID, UpdateInput{ClearRestaurant: true, RestaurantID: ptr(int64(1))})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRegistry_RotateSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, oldSecret, err := f.registry.Register(ctx, RegisterInput{Name: "Pass", RestaurantID: ptr(int64(1))})
	require.NoError(t, err)
	res, err := f.sessions.Login(ctx, d.UUID, oldSecret)
	require.NoError(t, err)

	newSecret, err := f.registry.RotateSecret(ctx, d.UUID)
	require.NoError(t, err)
	assert.NotEqual(t, oldSecret, newSecret)

	_, err = f.sessions.Validate(ctx, res.Token)
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))

	_, err = f.sessions.Login(ctx, d.UUID, oldSecret)
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))

	_, err = f.sessions.Login(ctx, d.UUID, newSecret)
	assert.NoError(t, err)
}

func TestRegistry_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, secret, err := f.registry.Register(ctx, RegisterInput{Name: "Pass", RestaurantID: ptr(int64(1))})
	require.NoError(t, err)
	_, err = f.sessions.Login(ctx, d.UUID, secret)
	require.NoError(t, err)
	_, err = f.registry.UpsertConfig(ctx, d.UUID, ConfigInput{AutoPrint: ptr(true)})
	require.NoError(t, err)

	require.NoError(t, f.registry.Delete(ctx, d.UUID))

	_, err = f.registry.Get(ctx, d.UUID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Zero(t, sessionCount(t, f.db, d.ID))

	var configs int64
	require.NoError(t, f.db.Model(&model.DeviceConfig{}).Count(&configs).Error)
	assert.Zero(t, configs)

	assert.True(t, apperr.IsKind(f.registry.Delete(ctx, d.UUID), apperr.KindNotFound))
}

func TestRegistry_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []RegisterInput{
		{Name: "A", RestaurantID: ptr(int64(1))},
		{Name: "B", RestaurantID: ptr(int64(2))},
		{Name: "C", RestaurantID: ptr(int64(1))},
	} {
		_, _, err := f.registry.Register(ctx, in)
		require.NoError(t, err)
	}

	all, err := f.registry.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bistro, err := f.registry.List(ctx, ptr(int64(1)))
	require.NoError(t, err)
	assert.Len(t, bistro, 2)
}

func TestRegistry_UpsertConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, _, err := f.registry.Register(ctx, RegisterInput{Name: "Pass", RestaurantID: ptr(int64(1))})
	require.NoError(t, err)

	eff, err := f.registry.UpsertConfig(ctx, d.UUID, ConfigInput{SoundVolume: ptr(10), DisplayMode: ptr("list")})
	require.NoError(t, err)
	assert.Equal(t, 10, eff.SoundVolume)
	assert.Equal(t, "list", eff.DisplayMode)
	assert.Equal(t, model.DefaultPollIntervalSeconds, eff.PollIntervalSeconds)

	// A second upsert replaces the overrides.
	eff, err = f.registry.UpsertConfig(ctx, d.UUID, ConfigInput{PrintCopies: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSoundVolume, eff.SoundVolume)
	assert.Equal(t, 2, eff.PrintCopies)

	_, err = f.registry.UpsertConfig(ctx, d.UUID, ConfigInput{SoundVolume: ptr(101), DisplayMode: ptr("carousel")})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Fields, "sound_volume")
	assert.Contains(t, e.Fields, "display_mode")

	_, err = f.registry.UpsertConfig(ctx, "missing", ConfigInput{})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRegistry_Heartbeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	f.registry.WithClock(func() time.Time { return now })

	d, _, err := f.registry.Register(ctx, RegisterInput{Name: "Pass", RestaurantID: ptr(int64(1))})
	require.NoError(t, err)

	cfg, at, err := f.registry.Heartbeat(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, now, at)
	assert.Equal(t, model.DefaultDisplayMode, cfg.DisplayMode)

	reloaded, err := f.registry.Get(ctx, d.UUID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastHeartbeatAt)
	assert.True(t, now.Equal(*reloaded.LastHeartbeatAt))
}
