package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/nobletooth/twine/pkg/store"
	"github.com/tidwall/redcon"
)

var (
	address   = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")
	idleClose = flag.Duration("idle_close", 0, "Close client connections idle for longer than this; 0 disables it.")
)

// writeOutput serializes the handler output into the connection.
func writeOutput(conn redcon.Conn, output redisOutput) {
	switch output.kind {
	case kindNil:
		conn.WriteNull()
	case kindError:
		conn.WriteError(output.text)
	case kindInt:
		conn.WriteInt64(output.integer)
	case kindIntArray:
		conn.WriteArray(len(output.ints))
		for _, value := range output.ints {
			conn.WriteInt64(value)
		}
	case kindBulkArray:
		conn.WriteArray(len(output.bulks))
		for _, value := range output.bulks {
			conn.WriteBulkString(value)
		}
	default:
		conn.WriteString(output.text)
	}
}

// RunRedisServer starts a Redis protocol server that serves the lists of the given registry.
// It blocks until `ctx` is cancelled or the server fails.
func RunRedisServer(ctx context.Context, registry *store.Registry) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(registry)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			output := redisHandler.handle(command)
			writeOutput(conn, output)
			if output.closeConnection {
				if err := conn.Close(); err != nil {
					slog.Error("Failed to close connection.", "error", err)
				}
			}
		},
		/*accept*/ func(conn redcon.Conn) bool {
			slog.Debug("Accepted connection.", "remote", conn.RemoteAddr())
			return true
		},
		/*closed*/ func(conn redcon.Conn, err error) {
			if err != nil {
				slog.Debug("Connection closed with an error.", "remote", conn.RemoteAddr(), "error", err)
			}
		})
	if *idleClose > 0 {
		redisServer.SetIdleClose(*idleClose)
	}

	listening := make(chan error, 1)
	serverErrSignal := make(chan error, 1)
	go func() {
		serverErrSignal <- redisServer.ListenServeAndSignal(listening)
	}()
	if err := <-listening; err != nil {
		return fmt.Errorf("failed to listen on %s: %w", *address, err)
	}
	slog.Info("Redis protocol server is listening.", "address", *address)

	select {
	case <-ctx.Done():
		if err := redisServer.Close(); err != nil {
			return fmt.Errorf("failed to close twine: %w", err)
		}
		<-serverErrSignal // Wait for the accept loop to exit.
	case err := <-serverErrSignal:
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}
