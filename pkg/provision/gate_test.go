package provision

import (
	"context"
	"testing"

	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/nvm"
	"github.com/bujia-iot/sensor-node/pkg/nvm/nvmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(fm *nvmtest.FakeModem, restamp string) *Gate {
	return NewGate(nvm.NewAccessor(fm, 0), restamp, 2)
}

func TestNeedsProvisioning(t *testing.T) {
	testCases := []struct {
		name   string
		record [3]byte
		faults map[byte]nvmtest.Fault
		want   bool
	}{
		{"基线记录", [3]byte{92, 0, 92}, nil, true},
		{"已配置记录", [3]byte{92, 1, 93}, nil, false},
		{"擦除状态", [3]byte{255, 255, 255}, nil, true},
		{"魔数读取失败", [3]byte{92, 1, 93}, map[byte]nvmtest.Fault{0: nvmtest.FaultPeerError}, true},
		{"状态读取超时", [3]byte{92, 1, 93}, map[byte]nvmtest.Fault{1: nvmtest.FaultSilent}, true},
		{"校验响应无法解析", [3]byte{92, 1, 93}, map[byte]nvmtest.Fault{2: nvmtest.FaultGarbage}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fm := nvmtest.New().Preload(tc.record[0], tc.record[1], tc.record[2])
			for addr, f := range tc.faults {
				fm.ReadFaults[addr] = f
			}
			g := newTestGate(fm, constants.RestampAlways)

			assert.Equal(t, tc.want, g.NeedsProvisioning(context.Background()))
			assert.Equal(t, !tc.want, g.CredentialsAlreadyInit(context.Background()))
			assert.Empty(t, fm.Writes(), "检查本身不写存储")
		})
	}
}

func TestStampThenCheck(t *testing.T) {
	fm := nvmtest.New()
	g := newTestGate(fm, constants.RestampAlways)

	written, err := g.Stamp(context.Background(), nvm.Record{})
	require.NoError(t, err)
	assert.True(t, written)
	assert.True(t, g.NeedsProvisioning(context.Background()))

	require.NoError(t, g.Finalize(context.Background()))
	assert.False(t, g.NeedsProvisioning(context.Background()))
	assert.Equal(t, []byte{92, 1, 93}, []byte{fm.Value(0), fm.Value(1), fm.Value(2)})
}

func TestStampPolicy(t *testing.T) {
	baseline := nvm.Baseline(constants.MagicNumber)

	fm := nvmtest.New().Preload(92, 0, 92)
	written, err := newTestGate(fm, constants.RestampAlways).Stamp(context.Background(), baseline)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Len(t, fm.Writes(), 3)

	fm = nvmtest.New().Preload(92, 0, 92)
	written, err = newTestGate(fm, constants.RestampGuarded).Stamp(context.Background(), baseline)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Empty(t, fm.Writes())

	fm = nvmtest.New()
	written, err = newTestGate(fm, constants.RestampGuarded).Stamp(context.Background(), nvm.Record{Magic: 255, State: 255, Checksum: 255})
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, byte(92), fm.Value(2))
}

func TestStampUnconfirmed(t *testing.T) {
	fm := nvmtest.New()
	fm.WriteFaults[0] = nvmtest.FaultPeerError
	g := newTestGate(fm, constants.RestampAlways)

	_, err := g.Stamp(context.Background(), nvm.Record{})
	assert.Error(t, err)
	assert.Len(t, fm.Writes(), 2, "每个字节最多尝试两次")
}
