package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/boardstream/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestAuthenticationError(t *testing.T) {
	tests := []struct {
		name   string
		reason error
	}{
		{"malformed", pkgerrors.ErrMalformedToken},
		{"expired", pkgerrors.ErrExpired},
		{"signature", pkgerrors.ErrInvalidSignature},
		{"misconfigured", pkgerrors.ErrMisconfiguredServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewAuthenticationError(tt.reason, "")
			assert.True(t, errors.Is(err, tt.reason))
			assert.True(t, pkgerrors.IsAuthentication(err))
			assert.Contains(t, err.Error(), tt.reason.Error())
		})
	}

	t.Run("with message", func(t *testing.T) {
		err := pkgerrors.NewAuthenticationError(pkgerrors.ErrMalformedToken, "expected 3 segments")
		assert.Equal(t, "authentication failed: malformed token: expected 3 segments", err.Error())
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("connect: %w", pkgerrors.NewAuthenticationError(pkgerrors.ErrExpired, ""))
		var authErr *pkgerrors.AuthenticationError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, pkgerrors.ErrExpired, authErr.Reason)
	})

	t.Run("not authentication", func(t *testing.T) {
		assert.False(t, pkgerrors.IsAuthentication(pkgerrors.ErrTimeout))
	})
}

func TestTransportError(t *testing.T) {
	t.Run("with target", func(t *testing.T) {
		base := errors.New("broken pipe")
		err := pkgerrors.NewTransportError("write", "conn-1", base)
		assert.Equal(t, "transport error during write to conn-1: broken pipe", err.Error())
		assert.True(t, pkgerrors.IsTransport(err))
		assert.Equal(t, base, errors.Unwrap(err))
	})

	t.Run("stale connection is a transport error", func(t *testing.T) {
		err := pkgerrors.WrapTransport("read", "", pkgerrors.ErrStaleConnection)
		assert.True(t, pkgerrors.IsTransport(err))
		assert.True(t, errors.Is(err, pkgerrors.ErrStaleConnection))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapTransport("read", "", nil))
	})
}

func TestNotFoundError(t *testing.T) {
	err := pkgerrors.NewNotFoundError("task", "t-1")
	assert.Equal(t, "task with ID t-1 not found", err.Error())
	assert.True(t, pkgerrors.IsNotFound(err))

	wrapped := errors.Join(errors.New("failed"), err)
	assert.True(t, pkgerrors.IsNotFound(wrapped))
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("event.type", "task.exploded", "unknown event type")
		assert.Equal(t, "validation failed for field event.type: unknown event type", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "empty body"}
		assert.Equal(t, "validation failed: empty body", err.Error())
	})

	t.Run("wrap", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapValidation("title", nil))
		err := pkgerrors.WrapValidation("title", errors.New("required"))
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestConfigError(t *testing.T) {
	base := errors.New("missing")
	err := pkgerrors.NewConfigError("server", "jwt secret not set", base)
	assert.Equal(t, "configuration error in server: jwt secret not set", err.Error())
	assert.True(t, errors.Is(err, base))

	err = pkgerrors.NewConfigError("", "bad", nil)
	assert.Equal(t, "configuration error: bad", err.Error())
}

func TestTimeoutError(t *testing.T) {
	err := pkgerrors.NewTimeoutError("wait for connection", "5s", "still reconnecting")
	assert.Equal(t, "operation wait for connection timed out after 5s: still reconnecting", err.Error())
	assert.True(t, pkgerrors.IsTimeout(err))

	err = pkgerrors.NewTimeoutError("flush", "", "slow peer")
	assert.Equal(t, "operation flush timed out: slow peer", err.Error())
}
