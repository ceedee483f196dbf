package lock

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// scriptedRedis answers commands in-process so no server is needed.
type scriptedRedis struct {
	mu       sync.Mutex
	acquire  bool
	evalErr  error
	commands []string
}

func (s *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (s *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		name := strings.ToLower(cmd.Name())
		s.commands = append(s.commands, name)
		switch c := cmd.(type) {
		case *redis.BoolCmd:
			c.SetVal(s.acquire)
			return nil
		case *redis.Cmd:
			if s.evalErr != nil {
				return s.evalErr
			}
			c.SetVal(int64(1))
			return nil
		}
		return errors.New("unexpected command " + name)
	}
}

func (s *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (s *scriptedRedis) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func newScriptedClient(t *testing.T, script *scriptedRedis) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(script)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLockerReleaseFailureWithoutLogger(t *testing.T) {
	script := &scriptedRedis{acquire: true, evalErr: errors.New("connection reset")}
	locker := NewRedis(newScriptedClient(t, script), time.Second, nil)

	unlock, err := locker.Lock(context.Background(), IssueKey("issue-1"))
	require.NoError(t, err)
	require.NotPanics(t, unlock)
	require.NotPanics(t, unlock)

	require.Equal(t, "set", script.seen()[0])
	require.Contains(t, script.seen(), "evalsha")
}

func TestRedisLockerGivesUpWithContext(t *testing.T) {
	script := &scriptedRedis{acquire: false}
	locker := NewRedis(newScriptedClient(t, script), time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err := locker.Lock(ctx, IssueKey("issue-1"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Greater(t, len(script.seen()), 1)
}
