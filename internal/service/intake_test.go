package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgm-radar/internal/domain"
	"bgm-radar/internal/quota"
	"bgm-radar/pkg/errors"
)

const intakeID = "UCabcdefghijklmnopqrstuv"

func TestAddChannel(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	f.yt.channels[intakeID] = bgmChannel(intakeID, 5000)
	f.yt.newest["UU"+intakeID] = &domain.VideoRef{VideoID: "latest", PublishedAt: testNow}

	result, err := f.svc.AddChannel(context.Background(), "https://www.youtube.com/channel/"+intakeID, IntakeOptions{Admission: testAdmission})
	require.NoError(t, err)

	assert.True(t, result.Admitted)
	assert.True(t, result.Saved)
	assert.False(t, result.AlreadyStored)
	require.NotNil(t, result.Record)
	assert.Greater(t, result.Record.GrowthRate, 0)
	require.NotNil(t, result.Record.LatestVideo)
	assert.Equal(t, "latest", result.Record.LatestVideo.VideoID)

	stored, err := f.repos.Channels.Get(context.Background(), intakeID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 3, f.tracker.Used())
}

func TestAddChannelAlreadyStored(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	_, err := f.repos.Channels.InsertIfAbsent(context.Background(), &domain.ChannelRecord{ChannelID: intakeID, Title: "stored"})
	require.NoError(t, err)

	result, err := f.svc.AddChannel(context.Background(), intakeID, IntakeOptions{Admission: testAdmission})
	require.NoError(t, err)

	assert.True(t, result.AlreadyStored)
	assert.False(t, result.Saved)
	assert.Equal(t, "stored", result.Record.Title)
	assert.Zero(t, f.yt.channelCalls)
	assert.Zero(t, f.tracker.Used())
}

func TestAddChannelRejectedUnlessForced(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	ch := bgmChannel(intakeID, 5000)
	ch.Description = "gaming lofi highlights"
	f.yt.channels[intakeID] = ch

	result, err := f.svc.AddChannel(context.Background(), intakeID, IntakeOptions{Admission: testAdmission})
	require.NoError(t, err)
	assert.False(t, result.Admitted)
	assert.False(t, result.Saved)
	assert.Equal(t, domain.RejectNotBGM, result.RejectionReason)
	require.NotNil(t, result.Record)

	stored, err := f.repos.Channels.Get(context.Background(), intakeID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	forced, err := f.svc.AddChannel(context.Background(), intakeID, IntakeOptions{Admission: testAdmission, Force: true})
	require.NoError(t, err)
	assert.False(t, forced.Admitted)
	assert.True(t, forced.Saved)
	assert.Equal(t, domain.RejectNotBGM, forced.RejectionReason)

	stored, err = f.repos.Channels.Get(context.Background(), intakeID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestValidateChannelDoesNotStore(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	f.yt.channels[intakeID] = bgmChannel(intakeID, 5000)

	result, err := f.svc.ValidateChannel(context.Background(), intakeID, testAdmission)
	require.NoError(t, err)

	assert.True(t, result.Admitted)
	assert.False(t, result.Saved)
	require.NotNil(t, result.Record)
	assert.Nil(t, result.Record.LatestVideo)

	stored, err := f.repos.Channels.Get(context.Background(), intakeID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAddChannelErrors(t *testing.T) {
	t.Run("bad reference", func(t *testing.T) {
		f := newCollectionFixture(t, CollectionSettings{})
		_, err := f.svc.AddChannel(context.Background(), "https://www.youtube.com/@lofi", IntakeOptions{Admission: testAdmission})
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		assert.Zero(t, f.yt.channelCalls)
	})

	t.Run("not found", func(t *testing.T) {
		f := newCollectionFixture(t, CollectionSettings{})
		_, err := f.svc.AddChannel(context.Background(), intakeID, IntakeOptions{Admission: testAdmission})
		assert.True(t, errors.IsNotFound(err))
		assert.Equal(t, 1, f.tracker.Used())
	})

	t.Run("no quota", func(t *testing.T) {
		f := newCollectionFixture(t, CollectionSettings{})
		f.yt.channels[intakeID] = bgmChannel(intakeID, 5000)
		f.tracker.Preload(quota.DefaultDailyLimit - 2)

		_, err := f.svc.AddChannel(context.Background(), intakeID, IntakeOptions{Admission: testAdmission})
		assert.True(t, errors.IsType(err, errors.ErrorTypeQuota))
		assert.Zero(t, f.yt.channelCalls)
	})
}
