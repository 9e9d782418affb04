package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestStub(t *testing.T, buffer int) (*stubHandle, chan CallbackMessage) {
	t.Helper()
	ch := make(chan CallbackMessage, buffer)
	handle := newStub(Options{Messages: ch, Logger: discardLogger()})
	t.Cleanup(func() { _ = handle.Close() })
	return handle, ch
}

func TestNewForceStubAlwaysSucceeds(t *testing.T) {
	ch := make(chan CallbackMessage, 16)
	handle, err := New(Options{
		ForceStub:    true,
		LibPath:      "/nonexistent/libengine.so",
		ResourcePath: "/nonexistent/resource",
		Messages:     ch,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, BackendStub, handle.ID())
	_ = handle.Close()
}

func TestNewFallsBackToStubWhenRealUnavailable(t *testing.T) {
	ch := make(chan CallbackMessage, 16)
	handle, err := New(Options{
		PreferReal: true,
		LibPath:    "/nonexistent/libengine.so",
		Messages:   ch,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, BackendStub, handle.ID())
	_ = handle.Close()
}

func TestStubConnectAndScreenshot(t *testing.T) {
	handle, ch := newTestStub(t, 16)

	_, err := handle.Screenshot()
	require.Error(t, err, "screenshot before connect must fail")

	connID, err := handle.Connect("adb", "127.0.0.1:5555", "{}")
	require.NoError(t, err)
	assert.NotEmpty(t, connID)
	assert.True(t, handle.IsConnected())

	msg := <-ch
	assert.Equal(t, MsgConnectionInfo, msg.Type)
	assert.Equal(t, "Connected", gjson.Get(msg.Content, "what").String())

	msg = <-ch
	assert.Equal(t, MsgConnectionInfo, msg.Type)
	assert.Equal(t, "ResolutionGot", gjson.Get(msg.Content, "what").String())
	assert.Equal(t, int64(1280), gjson.Get(msg.Content, "details.width").Int())

	shot, err := handle.Screenshot()
	require.NoError(t, err)
	assert.NotEmpty(t, shot)
	// PNG magic.
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, shot[:4])
}

func TestStubStructuredTaskCallbackSequence(t *testing.T) {
	handle, ch := newTestStub(t, 32)

	_, err := handle.Connect("adb", "127.0.0.1:5555", "{}")
	require.NoError(t, err)
	<-ch // connected
	<-ch // resolution

	taskID, err := handle.CreateTask("Fight", `{"stage":"1-7"}`)
	require.NoError(t, err)
	require.NoError(t, handle.Start())

	var types []MessageType
	deadline := time.After(2 * time.Second)
	for len(types) < 5 {
		select {
		case msg := <-ch:
			if msg.TaskID != 0 {
				assert.Equal(t, taskID, msg.TaskID)
			}
			types = append(types, msg.Type)
		case <-deadline:
			t.Fatalf("timed out, got %v", types)
		}
	}

	assert.Equal(t, []MessageType{
		MsgTaskChainStart,
		MsgSubTaskStart,
		MsgSubTaskCompleted,
		MsgTaskChainCompleted,
		MsgAllTasksCompleted,
	}, types)
}

func TestStubStopInterruptsRun(t *testing.T) {
	handle, _ := newTestStub(t, 64)

	_, err := handle.Connect("adb", "127.0.0.1:5555", "{}")
	require.NoError(t, err)

	for range 5 {
		_, err := handle.CreateTask("Fight", "{}")
		require.NoError(t, err)
	}
	require.NoError(t, handle.Start())
	require.NoError(t, handle.Stop())

	deadline := time.Now().Add(2 * time.Second)
	for handle.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, handle.IsRunning())
}

func TestStubClosedHandleRejectsConnect(t *testing.T) {
	handle, _ := newTestStub(t, 1)
	require.NoError(t, handle.Close())

	_, err := handle.Connect("adb", "127.0.0.1:5555", "{}")
	assert.Error(t, err)
}

func TestStubCreateTaskValidation(t *testing.T) {
	handle, ch := newTestStub(t, 16)

	_, err := handle.CreateTask("Fight", "{}")
	assert.Error(t, err, "create before connect must fail")

	_, err = handle.Connect("adb", "127.0.0.1:5555", "{}")
	require.NoError(t, err)
	<-ch

	_, err = handle.CreateTask("", "{}")
	assert.Error(t, err, "empty task type must fail")

	id, err := handle.CreateTask("Recruit", "{}")
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, handle.Tasks())

	require.NoError(t, handle.SetTaskParams(id, `{"times":3}`))
	assert.Error(t, handle.SetTaskParams(id+100, "{}"))
}
