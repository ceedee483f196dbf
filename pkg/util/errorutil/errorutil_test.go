package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{name: "domain error kept", err: NewAlreadyResolved("issue-1"), code: CodeAlreadyResolved, status: http.StatusConflict},
		{name: "wrapped domain error", err: fmt.Errorf("assign: %w", NewNoEligibleEngineers()), code: CodeNoEligibleEngineers, status: http.StatusUnprocessableEntity},
		{name: "deadline", err: fmt.Errorf("update issue: %w", context.DeadlineExceeded), code: CodeTimeout, status: http.StatusGatewayTimeout},
		{name: "anything else", err: errors.New("disk on fire"), code: CodeInternal, status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			require.Equal(t, tt.code, got.Code)
			require.Equal(t, tt.status, got.HTTPStatus)
			require.True(t, IsCode(MapError(tt.err), tt.code))
		})
	}
	require.Nil(t, ToDomainError(nil))
	require.NoError(t, MapError(nil))
}

func TestTimeoutKeepsCause(t *testing.T) {
	err := MapError(context.DeadlineExceeded)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, "operation timed out: context deadline exceeded", err.Error())
}

func TestRateLimitedDetails(t *testing.T) {
	err := ToDomainError(NewRateLimited(90_500_000_000))
	require.Equal(t, 90, err.Details["retry_after_seconds"])
}
