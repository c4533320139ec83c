package nvm

import (
	"context"
	"testing"

	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/nvm/nvmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordConfigured(t *testing.T) {
	const m = constants.MagicNumber

	assert.False(t, Baseline(m).Configured(m), "基线记录表示未配置")
	assert.True(t, Provisioned(m).Configured(m))
	assert.Equal(t, Record{92, 1, 93}, Provisioned(m))
	assert.Equal(t, Record{92, 0, 92}, Baseline(m))

	testCases := []struct {
		name string
		rec  Record
	}{
		{"魔数错误", Record{91, 1, 92}},
		{"状态错误", Record{m, 2, m + 2}},
		{"校验错误", Record{m, 1, m}},
		{"魔数为哨兵", Record{255, 1, 0}},
		{"状态为哨兵", Record{m, 255, m - 1}},
		{"校验为哨兵", Record{m, 1, 255}},
		{"擦除状态", Record{255, 255, 255}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, tc.rec.Configured(m))
		})
	}
}

func TestChecksumWrapsModulo256(t *testing.T) {
	rec := Provisioned(255)
	assert.Equal(t, byte(0), rec.Checksum)
	assert.True(t, rec.Configured(255))
}

func TestReadRecord(t *testing.T) {
	fm := nvmtest.New().Preload(92, 1, 93)
	a := NewAccessor(fm, 0)

	rec, err := a.ReadRecord(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Configured(constants.MagicNumber))
	assert.Equal(t, "magic=92 state=1 checksum=93", rec.String())

	fm.ReadFaults[1] = nvmtest.FaultPeerError
	rec, err = a.ReadRecord(context.Background())
	assert.Error(t, err)
	assert.Equal(t, constants.NVMSentinel, rec.State)
	assert.False(t, rec.Configured(constants.MagicNumber))
}

func TestWriteRecord(t *testing.T) {
	fm := nvmtest.New()
	a := NewAccessor(fm, 0)

	require.NoError(t, a.WriteRecord(context.Background(), Baseline(constants.MagicNumber), 1))
	assert.Equal(t, []string{"AT$NVM 0,92", "AT$NVM 1,0", "AT$NVM 2,92"}, fm.Writes())

	require.NoError(t, a.WriteStatus(context.Background(), Provisioned(constants.MagicNumber), 1))
	rec, err := a.ReadRecord(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Configured(constants.MagicNumber))
}
