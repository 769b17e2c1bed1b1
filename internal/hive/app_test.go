package hive

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hive/internal/dispatch"
	"github.com/mesh-intelligence/hive/internal/logging/testlog"
	"github.com/mesh-intelligence/hive/internal/store"
	"github.com/mesh-intelligence/hive/internal/wire"
	"github.com/mesh-intelligence/hive/pkg/types"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type harness struct {
	t       *testing.T
	backend *store.Backend
	app     *App
	d       *dispatch.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := testlog.New(t)
	b := store.NewBackend(log)
	cfg := types.Default()
	cfg.DataDir = t.TempDir()
	require.NoError(t, b.Attach(context.Background(), cfg))
	t.Cleanup(func() { _ = b.Detach() })

	clk := fixedClock(time.Date(2012, 6, 1, 17, 45, 10, 0, time.UTC))
	h := &harness{
		t:       t,
		backend: b,
		app:     New(store.NewObjectSource(b, log), store.NewCustomSource(b, log), clk, log),
	}
	h.restart()
	return h
}

// restart replaces the dispatcher, as a new process on the same database
// would.
func (h *harness) restart() {
	h.t.Helper()
	tbl := dispatch.NewTable()
	require.NoError(h.t, h.app.Register(tbl))
	h.d = dispatch.New(tbl, dispatch.WithLogger(testlog.New(h.t)))
}

func (h *harness) call(raw string) (string, dispatch.Outcome) {
	h.t.Helper()
	out := make([]byte, types.DefaultOutputCapacity)
	o := h.d.Call(context.Background(), raw, out)
	return string(out[:o.Written]), o
}

// ok runs a call that must be delivered and returns the reply.
func (h *harness) ok(raw string) string {
	h.t.Helper()
	reply, o := h.call(raw)
	require.NoError(h.t, o.Err, raw)
	return reply
}

func TestRegisterAllCommands(t *testing.T) {
	h := newHarness(t)
	tbl := dispatch.NewTable()
	require.NoError(t, h.app.Register(tbl))

	assert.Equal(t, []int{302, 303, 304, 305, 306, 307, 308, 309, 310, 388, 396, 397, 400, 998, 999}, tbl.IDs())
	assert.Error(t, h.app.Register(tbl), "ids are registered once")
}

func TestDateTime(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, `["PASS",[2012,6,1,17,45]]`, h.ok(`["CHILD",307]`))
}

const publishHilux = `["CHILD",308,11,"HiluxDZ",0.1,42,[90,[1.5,2,0]],[[],[],[]],[],0.75,90210]`

var startReply = regexp.MustCompile(`^\["ObjectStreamStart",(\d+),"([0-9a-f]{32})"\]$`)

func TestObjectStream(t *testing.T) {
	h := newHarness(t)

	m := startReply.FindStringSubmatch(h.ok(`["CHILD",302,11]`))
	require.NotNil(t, m)
	assert.Equal(t, "0", m[1])
	assert.Equal(t, 11, h.d.Session().Instance())

	assert.Equal(t, `["PASS"]`, h.ok(publishHilux))
	assert.Equal(t, `["PASS"]`, h.ok(`["CHILD",308,11,"TentStorage",0,7,[0,[5,5,0]],[[],[],[]],[],0,555]`))
	assert.Equal(t, `["PASS","1"]`, h.ok(`["CHILD",388,90210]`))
	assert.Equal(t, `["ERROR"]`, h.ok(`["CHILD",388,31337]`))

	h.restart()
	m = startReply.FindStringSubmatch(h.ok(`["CHILD",302,11]`))
	require.NotNil(t, m)
	assert.Equal(t, "2", m[1])
	assert.Equal(t, m[2], h.d.Session().ShutdownKey())

	assert.Equal(t, `["OBJ","1","HiluxDZ","42",[90,[1.5,2,0]],[[],[],[]],[],0.75,0.1]`, h.ok(`["CHILD",302]`))
	assert.Equal(t, `["OBJ","2","TentStorage","7",[0,[5,5,0]],[[],[],[]],[],0.0,0.0]`, h.ok(`["CHILD",302]`))
	assert.Equal(t, `["ERROR","Instance already initialized"]`, h.ok(`["CHILD",302,11]`))
}

func TestObjectStreamStartNeedsServerID(t *testing.T) {
	h := newHarness(t)
	reply, o := h.call(`["CHILD",302]`)
	assert.Empty(t, reply)
	assert.Equal(t, dispatch.KindBadEnvelope, dispatch.KindOf(o.Err))
	assert.Empty(t, h.d.Session().ShutdownKey())
}

func TestObjectUpdates(t *testing.T) {
	h := newHarness(t)
	h.ok(`["CHILD",302,11]`)
	h.ok(publishHilux)

	steps := []string{
		`["CHILD",303,1,[["ItemMap"],[]]]`,
		`["CHILD",309,90210,[["ItemGPS"],[]]]`,
		`["CHILD",305,1,[45,[7,8,0]],0.5]`,
		`["CHILD",306,1,[["motor",1.0]],0.4]`,
		`["CHILD",396,1]`,
		`["CHILD",397,90210]`,
	}
	for _, raw := range steps {
		assert.Equal(t, `["PASS"]`, h.ok(raw), raw)
	}

	h.restart()
	h.ok(`["CHILD",302,11]`)
	assert.Equal(t, `["OBJ","1","HiluxDZ","42",[45,[7,8,0]],[["ItemGPS"],[]],[["motor",1.0]],0.5,0.4]`, h.ok(`["CHILD",302]`))
}

func TestObjectDelete(t *testing.T) {
	h := newHarness(t)
	h.ok(`["CHILD",302,11]`)
	h.ok(publishHilux)

	assert.Equal(t, `["PASS"]`, h.ok(`["CHILD",310,90210]`))
	assert.Equal(t, `["ERROR"]`, h.ok(`["CHILD",388,90210]`))

	h.ok(publishHilux)
	assert.Equal(t, `["PASS"]`, h.ok(`["CHILD",304,"2"]`), "ids may arrive as numeric strings")
	assert.Equal(t, `["ERROR"]`, h.ok(`["CHILD",388,90210]`))
}

func TestZeroIdentIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	h.ok(`["CHILD",302,11]`)
	h.ok(`["CHILD",308,11,"HiluxDZ",0.1,42,[],[],[],0.75,0]`)

	for _, raw := range []string{
		`["CHILD",303,0,[["junk"]]]`,
		`["CHILD",304,0]`,
		`["CHILD",310,0]`,
		`["CHILD",396,0]`,
		`["CHILD",305,0,[1,[1,1,1]],0]`,
		`["CHILD",305,-4,[1,[1,1,1]],0]`,
		`["CHILD",306,0,[],1]`,
	} {
		assert.Equal(t, `["PASS"]`, h.ok(raw), raw)
	}

	h.restart()
	h.ok(`["CHILD",302,11]`)
	assert.Equal(t, `["OBJ","1","HiluxDZ","42",[],[],[],0.75,0.1]`, h.ok(`["CHILD",302]`))
}

func TestStoreFailureRepliesError(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.Detach())

	assert.Equal(t, `["ERROR"]`, h.ok(`["CHILD",304,5]`))
	assert.Equal(t, `["ERROR"]`, h.ok(`["CHILD",388,5]`))
	assert.Equal(t, `false`, h.ok(`["CHILD",998,"DELETE FROM object_data",[]]`))
}

func TestServerShutdown(t *testing.T) {
	h := newHarness(t)

	reply, o := h.call(`["CHILD",400,"anything"]`)
	require.NoError(t, o.Err)
	assert.Equal(t, `["ERROR"]`, reply, "no key minted yet")
	assert.False(t, o.Shutdown)

	m := startReply.FindStringSubmatch(h.ok(`["CHILD",302,11]`))
	require.NotNil(t, m)

	reply, o = h.call(`["CHILD",400,"0123456789abcdef0123456789abcdef"]`)
	require.NoError(t, o.Err)
	assert.Equal(t, `["ERROR"]`, reply)
	assert.False(t, o.Shutdown)

	reply, o = h.call(fmt.Sprintf(`["CHILD",400,%q]`, m[2]))
	require.NoError(t, o.Err)
	assert.Equal(t, `["PASS"]`, reply)
	assert.True(t, o.Shutdown)
}

func TestCustomExecuteAndStream(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, `true`, h.ok(`["CHILD",998,"CREATE TABLE scores (name TEXT, points INTEGER)",[]]`))
	assert.Equal(t, `true`, h.ok(`["CHILD",998,"INSERT INTO scores VALUES (?, ?)",["alice",10]]`))
	assert.Equal(t, `true`, h.ok(`["CHILD",998,"INSERT INTO scores VALUES (?, ?)",["bob","0"]]`))
	assert.Equal(t, `false`, h.ok(`["CHILD",998,"INSERT INTO nowhere VALUES (?)",[1]]`))

	assert.Equal(t, `["CustomStreamStart",2]`, h.ok(`["CHILD",999,"SELECT name, points FROM scores WHERE points >= ? ORDER BY name",[0]]`))
	assert.Equal(t, `["alice",10]`, h.ok(`["CHILD",999]`))
	assert.Equal(t, `["bob",0]`, h.ok(`["CHILD",999]`))

	// A drained stream starts again on the next call.
	assert.Equal(t, `["CustomStreamStart",1]`, h.ok(`["CHILD",999,"SELECT name FROM scores WHERE name = '?'",["bob"]]`))
	assert.Equal(t, `["bob"]`, h.ok(`["CHILD",999,"ignored while rows are pending",[]]`))
}

func TestCustomStreamZeroRows(t *testing.T) {
	h := newHarness(t)
	h.ok(`["CHILD",998,"CREATE TABLE empty (id INTEGER)",[]]`)

	assert.Equal(t, `["CustomStreamStart",0]`, h.ok(`["CHILD",999,"SELECT id FROM empty",[]]`))
	assert.Equal(t, `["CustomStreamStart",0]`, h.ok(`["CHILD",999,"SELECT id FROM empty",[]]`))

	_, o := h.call(`["CHILD",999]`)
	assert.Equal(t, dispatch.KindBadEnvelope, dispatch.KindOf(o.Err), "an idle stream needs a template")
}

func TestCustomArityMismatchIsDropped(t *testing.T) {
	h := newHarness(t)
	for _, raw := range []string{
		`["CHILD",998,"SELECT ?, ?",[1]]`,
		`["CHILD",999,"SELECT ?",[]]`,
	} {
		reply, o := h.call(raw)
		assert.Empty(t, reply, raw)
		assert.Equal(t, dispatch.KindArityMismatch, dispatch.KindOf(o.Err), raw)
	}
}

func TestMissingArgumentIsDropped(t *testing.T) {
	h := newHarness(t)
	out := make([]byte, 64)
	for i := range out {
		out[i] = 0xAA
	}

	o := h.d.Call(context.Background(), `["CHILD",303,5]`, out)
	assert.Equal(t, dispatch.KindBadEnvelope, dispatch.KindOf(o.Err))
	assert.Zero(t, o.Written)
	assert.Equal(t, byte(0xAA), out[0])

	assert.Equal(t, `["PASS",[2012,6,1,17,45]]`, h.ok(`["CHILD",307]`), "process keeps serving")
}

func TestDateTimeFields(t *testing.T) {
	clk := fixedClock(time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC))
	app := New(nil, nil, clk, testlog.New(t))

	res, err := app.dateTime(context.Background(), dispatch.NewSession(), dispatch.Params{})
	require.NoError(t, err)
	text, err := wire.Encode(res.Value)
	require.NoError(t, err)
	assert.Equal(t, `["PASS",[1999,12,31,23,59]]`, text)
}
