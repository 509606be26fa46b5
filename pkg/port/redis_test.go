package port

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/nobletooth/twine/pkg/store"
	"github.com/nobletooth/twine/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// freeAddress returns a local address that nothing listens on.
func freeAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

// startServer runs the Redis protocol server in the background and returns a function that stops it.
func startServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	addr = freeAddress(t)
	utils.SetTestFlag(t, "address", addr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunRedisServer(ctx, store.NewRegistry()) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 10*time.Millisecond)

	return addr, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Server did not stop in time.")
		}
	}
}

func TestRunRedisServer_EndToEnd(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, Protocol: 2, DisableIndentity: true})
	defer func() { _ = client.Close() }()

	assert.Equal(t, "PONG", client.Ping(ctx).Val())

	for _, v := range []int64{10, 20, 30, 40} {
		_, err := client.Do(ctx, "RPUSH", "numbers", v).Int64()
		require.NoError(t, err)
	}
	length, err := client.Do(ctx, "LINSERTAT", "numbers", 2, 25).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)

	values, err := client.Do(ctx, "LITEMS", "numbers").Int64Slice()
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 25, 30, 40}, values)

	removed, err := client.Do(ctx, "LDELAT", "numbers", 2).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(25), removed)

	err = client.Do(ctx, "LDELAT", "numbers", 4).Err()
	assert.ErrorContains(t, err, "INVALIDARG")
	err = client.Do(ctx, "RPOP", "empty").Err()
	assert.ErrorContains(t, err, "EMPTYLIST")
	err = client.Do(ctx, "LREMFIRST", "numbers", 99).Err()
	assert.ErrorContains(t, err, "NOTFOUND")

	err = client.Do(ctx, "LPOP", "empty").Err()
	assert.ErrorIs(t, err, redis.Nil, "Popping the head of an empty list is a no-op")

	keys, err := client.Do(ctx, "KEYS", "num*").StringSlice()
	require.NoError(t, err)
	assert.Equal(t, []string{"numbers"}, keys)

	deleted, err := client.Do(ctx, "DEL", "numbers").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRunRedisServer_StopsWithoutLeaks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr, stop := startServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("PING\r\n"))
	require.NoError(t, err)
	reply := make([]byte, len("+PONG\r\n"))
	_, err = io.ReadFull(conn, reply)
	require.NoError(t, err)
	assert.Equal(t, "+PONG\r\n", string(reply))
	require.NoError(t, conn.Close())
	stop()
}

func TestRunRedisServer_IdleClose(t *testing.T) {
	utils.SetTestFlag(t, "idle_close", "50ms")
	addr, stop := startServer(t)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, err = conn.Write([]byte("PING\r\n"))
	require.NoError(t, err)
	reply := make([]byte, len("+PONG\r\n"))
	_, err = io.ReadFull(conn, reply)
	require.NoError(t, err)

	// Stay idle; the server hangs up well before the client side deadline.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	started := time.Now()
	_, err = conn.Read(reply)
	assert.ErrorIs(t, err, io.EOF)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestRunRedisServer_AddressInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()
	utils.SetTestFlag(t, "address", listener.Addr().String())

	assert.Error(t, RunRedisServer(context.Background(), store.NewRegistry()))
}

func TestRunRedisServer_EmptyAddress(t *testing.T) {
	utils.SetTestFlag(t, "address", "")
	assert.Error(t, RunRedisServer(context.Background(), store.NewRegistry()))
}
