package nvm

import (
	"context"
	"testing"

	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/nvm/nvmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDistinguishesFailures(t *testing.T) {
	fm := nvmtest.New().Preload(92, 1, 93)
	fm.ReadFaults[0] = nvmtest.FaultSilent
	fm.ReadFaults[1] = nvmtest.FaultPeerError
	fm.ReadFaults[2] = nvmtest.FaultGarbage
	fm.Memory[3] = 255
	a := NewAccessor(fm, 0)
	ctx := context.Background()

	_, err := a.Read(ctx, 0)
	assert.True(t, errors.IsCommunicationFailure(err))

	_, err = a.Read(ctx, 1)
	assert.True(t, errors.IsErrCode(err, errors.ErrPeerError))

	_, err = a.Read(ctx, 2)
	assert.True(t, errors.IsErrCode(err, errors.ErrMalformedResponse))

	// 真实存储的255与失败哨兵通过error区分
	v, err := a.Read(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, byte(255), v)
}

func TestReadOrSentinel(t *testing.T) {
	fm := nvmtest.New().Preload(92, 1, 93)
	fm.ReadFaults[1] = nvmtest.FaultPeerError
	a := NewAccessor(fm, 0)

	assert.Equal(t, byte(92), a.ReadOrSentinel(context.Background(), 0))
	assert.Equal(t, constants.NVMSentinel, a.ReadOrSentinel(context.Background(), 1))
}

func TestWrite(t *testing.T) {
	fm := nvmtest.New()
	a := NewAccessor(fm, 0)

	require.NoError(t, a.Write(context.Background(), 1, 1))
	assert.Equal(t, byte(1), fm.Value(1))
	assert.Equal(t, []string{"AT$NVM 1,1"}, fm.Writes())

	fm.WriteFaults[2] = nvmtest.FaultGarbage
	err := a.Write(context.Background(), 2, 93)
	assert.True(t, errors.IsErrCode(err, errors.ErrMalformedResponse))

	fm.WriteFaults[2] = nvmtest.FaultSilent
	err = a.Write(context.Background(), 2, 93)
	assert.True(t, errors.IsErrCode(err, errors.ErrModemTimeout))
}

func TestWriteConfirmedRetries(t *testing.T) {
	fm := nvmtest.New()
	fm.WriteFailuresLeft[1] = 2
	a := NewAccessor(fm, 0)

	require.NoError(t, a.WriteConfirmed(context.Background(), 1, 1, 3))
	assert.Equal(t, byte(1), fm.Value(1))
	assert.Len(t, fm.Writes(), 3)

	fm.WriteFailuresLeft[2] = 5
	err := a.WriteConfirmed(context.Background(), 2, 93, 3)
	assert.True(t, errors.IsErrCode(err, errors.ErrRecordWrite))
	assert.True(t, errors.IsErrCode(err, errors.ErrPeerError))
	assert.Equal(t, byte(0xFF), fm.Value(2))
}

func TestWriteConfirmedStopsOnCancel(t *testing.T) {
	a := NewAccessor(nvmtest.New(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.WriteConfirmed(ctx, 1, 1, 3), context.Canceled)
}
