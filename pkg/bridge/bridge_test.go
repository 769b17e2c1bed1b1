package bridge

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hive/pkg/types"
)

func testConfig(t *testing.T) types.Config {
	t.Helper()
	cfg := types.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

func open(t *testing.T, cfg types.Config, opts ...Option) *Bridge {
	t.Helper()
	b, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bridge.OutputCapacity = 1

	_, err := Open(context.Background(), cfg)
	assert.ErrorIs(t, err, types.ErrCapacityTooSmall)
}

func TestCallWritesTerminatedReply(t *testing.T) {
	b := open(t, testConfig(t))
	out := bytes.Repeat([]byte{0xFF}, b.Capacity())

	o := b.Call(context.Background(), `["CHILD",307]`, out)
	require.NoError(t, o.Err)
	assert.Regexp(t, `^\["PASS",\[\d{4},\d{1,2},\d{1,2},\d{1,2},\d{1,2}\]\]$`, string(out[:o.Written]))
	assert.Equal(t, byte(0), out[o.Written])
}

func TestSmallCapacityDropsReply(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bridge.OutputCapacity = 10
	b := open(t, cfg)

	reply, o := b.CallString(context.Background(), `["CHILD",307]`)
	assert.Empty(t, reply)
	assert.Equal(t, Kind("EncodingOverflow"), KindOf(o.Err))
}

func TestFailureReplyOption(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bridge.FailureReply = true
	b := open(t, cfg)

	reply, o := b.CallString(context.Background(), `["CHILD",123]`)
	require.Error(t, o.Err)
	assert.Equal(t, `["ERROR","UnknownCommand"]`, reply)
}

func TestShutdownRoundTrip(t *testing.T) {
	var logs bytes.Buffer
	b := open(t, testConfig(t), WithLogger(zerolog.New(&logs)))
	ctx := context.Background()

	start, o := b.CallString(ctx, `["CHILD",302,1]`)
	require.NoError(t, o.Err)
	m := regexp.MustCompile(`"([0-9a-f]{32})"`).FindStringSubmatch(start)
	require.NotNil(t, m, start)

	reply, o := b.CallString(ctx, fmt.Sprintf(`["CHILD",400,%q]`, m[1]))
	require.NoError(t, o.Err)
	assert.Equal(t, `["PASS"]`, reply)
	assert.True(t, o.Shutdown)
	assert.Contains(t, logs.String(), `"component":"dispatch"`)
}

func TestDataPersistsAcrossOpens(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	reply, o := b.CallString(ctx, `["CHILD",998,"CREATE TABLE notes (body TEXT)",[]]`)
	require.NoError(t, o.Err)
	require.Equal(t, "true", reply)
	reply, _ = b.CallString(ctx, `["CHILD",998,"INSERT INTO notes VALUES (?)",["kept"]]`)
	require.Equal(t, "true", reply)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	b = open(t, cfg)
	reply, _ = b.CallString(ctx, `["CHILD",999,"SELECT body FROM notes",[]]`)
	assert.Equal(t, `["CustomStreamStart",1]`, reply)
	reply, _ = b.CallString(ctx, `["CHILD",999]`)
	assert.Equal(t, `["kept"]`, reply)
}
