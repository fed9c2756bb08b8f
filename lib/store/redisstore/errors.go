package redisstore

import (
	"errors"
	"strings"

	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/redis/go-redis/v9"
)

// classifyError translates a go-redis error into a *store.Error. This is the only
// place where the text of a server reply is inspected; callers work with the
// RetCode of the result.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var redisErr redis.Error
	if !errors.As(err, &redisErr) {
		// network, timeout or context errors
		return store.WrapError(store.RetCInternalError, err)
	}

	msg := redisErr.Error()
	switch {
	case strings.HasPrefix(msg, "BUSYKEY"), strings.HasPrefix(msg, "ERR Target key name is busy"):
		// servers before 3.0 reply with a plain ERR
		return store.WrapError(store.RetCKeyBusy, err)
	case strings.HasPrefix(msg, "LOADING"):
		return store.WrapError(store.RetCLoading, err)
	case strings.HasPrefix(msg, "ERR unknown command"), strings.HasPrefix(msg, "ERR syntax error"):
		return store.WrapError(store.RetCUnsupportedOperation, err)
	case strings.HasPrefix(msg, "ERR Bad data format"), strings.HasPrefix(msg, "ERR DUMP payload"), strings.HasPrefix(msg, "ERR Invalid TTL"):
		return store.WrapError(store.RetCInvalidOperation, err)
	default:
		return store.WrapError(store.RetCInternalError, err)
	}
}

// isReplyError reports whether err is an error reply of the server (as opposed to
// a failure of the round trip itself).
func isReplyError(err error) bool {
	var redisErr redis.Error
	return errors.As(err, &redisErr)
}
