package port

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nobletooth/twine/pkg/list"
	"github.com/nobletooth/twine/pkg/scan"
	"github.com/nobletooth/twine/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const RedisOk = "OK"

var commandsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "twine_commands_total",
	Help: "Total number of handled Redis protocol commands.",
}, []string{"command", "status" /* ok | error */})

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

type outputKind uint8

const (
	kindString outputKind = iota
	kindNil
	kindError
	kindInt
	kindIntArray
	kindBulkArray
)

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	kind            outputKind
	closeConnection bool     // Closes the connection after writing if true.
	text            string   // Simple string or error message.
	integer         int64    // Used by kindInt.
	ints            []int64  // Used by kindIntArray.
	bulks           []string // Used by kindBulkArray.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{kind: kindString, text: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{kind: kindNil}
}

func writeRedisInt(i int64) redisOutput {
	return redisOutput{kind: kindInt, integer: i}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{kind: kindString, text: s}
}

func writeRedisInts(values []int64) redisOutput {
	return redisOutput{kind: kindIntArray, ints: values}
}

func writeRedisBulks(values []string) redisOutput {
	return redisOutput{kind: kindBulkArray, bulks: values}
}

// writeRedisError maps list errors to their own error prefixes so clients can tell them apart.
func writeRedisError(err error) redisOutput {
	prefix := "ERR"
	switch {
	case errors.Is(err, list.ErrEmptyList):
		prefix = "EMPTYLIST"
	case errors.Is(err, list.ErrInvalidArgument):
		prefix = "INVALIDARG"
	case errors.Is(err, list.ErrNotFound):
		prefix = "NOTFOUND"
	case errors.Is(err, list.ErrCorruptState):
		prefix = "CORRUPT"
	}
	return redisOutput{kind: kindError, text: prefix + " " + err.Error()}
}

var errNotInteger = errors.New("value is not an integer or out of range")

func wrongArity(command string) redisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(command)))
}

// knownCommands bounds the cardinality of the command metric label.
var knownCommands = []string{
	"PING", "QUIT", "LPUSH", "RPUSH", "LINSERTAT", "LPOP", "RPOP", "LDELAT", "LREMFIRST", "LITEMS", "LLEN",
	"LCHECK", "DEL", "KEYS",
}

type redisHandler struct {
	registry *store.Registry
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(registry *store.Registry) (*redisHandler, error) {
	if registry == nil {
		return nil, errors.New("expected a non-nil list registry")
	}
	return &redisHandler{registry: registry}, nil
}

// handle executes the given command and records it in the command metric.
func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	cmd.command = strings.ToUpper(cmd.command)
	output := rh.dispatch(cmd)
	label, status := "unknown", "ok"
	if slices.Contains(knownCommands, cmd.command) {
		label = cmd.command
	}
	if output.kind == kindError {
		status = "error"
	}
	commandsMetric.WithLabelValues(label, status).Inc()
	return output
}

func (rh *redisHandler) dispatch(cmd redisCommand) redisOutput {
	switch cmd.command {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "LPUSH", "RPUSH":
		if len(cmd.args) != 2 {
			return wrongArity(cmd.command)
		}
		value, err := strconv.ParseInt(cmd.args[1], 10, 64)
		if err != nil {
			return writeRedisError(errNotInteger)
		}
		insert := rh.registry.InsertAtHead
		if cmd.command == "RPUSH" {
			insert = rh.registry.InsertAtTail
		}
		length, err := insert(cmd.args[0], value)
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(int64(length))
	case "LINSERTAT":
		if len(cmd.args) != 3 {
			return wrongArity(cmd.command)
		}
		index, indexErr := strconv.Atoi(cmd.args[1])
		value, valueErr := strconv.ParseInt(cmd.args[2], 10, 64)
		if indexErr != nil || valueErr != nil {
			return writeRedisError(errNotInteger)
		}
		length, err := rh.registry.InsertAtIndex(cmd.args[0], index, value)
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(int64(length))
	case "LPOP":
		if len(cmd.args) != 1 {
			return wrongArity(cmd.command)
		}
		value, removed, err := rh.registry.DeleteAtHead(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		if !removed {
			return writeRedisNil()
		}
		return writeRedisInt(value)
	case "RPOP":
		if len(cmd.args) != 1 {
			return wrongArity(cmd.command)
		}
		value, err := rh.registry.DeleteAtTail(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(value)
	case "LDELAT":
		if len(cmd.args) != 2 {
			return wrongArity(cmd.command)
		}
		index, err := strconv.Atoi(cmd.args[1])
		if err != nil {
			return writeRedisError(errNotInteger)
		}
		value, err := rh.registry.DeleteAtIndex(cmd.args[0], index)
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(value)
	case "LREMFIRST":
		if len(cmd.args) != 2 {
			return wrongArity(cmd.command)
		}
		value, err := strconv.ParseInt(cmd.args[1], 10, 64)
		if err != nil {
			return writeRedisError(errNotInteger)
		}
		if err := rh.registry.DeleteFirstMatch(cmd.args[0], value); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString(RedisOk)
	case "LITEMS":
		if len(cmd.args) != 1 {
			return wrongArity(cmd.command)
		}
		values, err := rh.registry.Render(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInts(values)
	case "LLEN":
		if len(cmd.args) != 1 {
			return wrongArity(cmd.command)
		}
		length, err := rh.registry.Len(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(int64(length))
	case "LCHECK":
		if len(cmd.args) != 1 {
			return wrongArity(cmd.command)
		}
		if err := rh.registry.Check(cmd.args[0]); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString(RedisOk)
	case "DEL":
		if len(cmd.args) < 1 {
			return wrongArity(cmd.command)
		}
		return writeRedisInt(int64(rh.registry.Delete(cmd.args...)))
	case "KEYS":
		if len(cmd.args) != 1 {
			return wrongArity(cmd.command)
		}
		matched := slices.Collect(scan.MatchGlob(cmd.args[0], slices.Values(rh.registry.Names())))
		if matched == nil {
			matched = []string{}
		}
		return writeRedisBulks(matched)
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}
