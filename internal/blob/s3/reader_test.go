package s3blob

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("get: %w", &types.NoSuchKey{})))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(fmt.Errorf("get: %w", statusErr(404))))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(statusErr(500)))
	assert.False(t, isNotFound(errors.New("timeout")))
}

func TestUnderPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   bool
	}{
		{"reports", ReportPath("reports", 8, "r1"), true},
		{"reports", "reports-old/order_8/r1.csv", false},
		{"reports", "reports/../secrets.csv", false},
		{"reports", "other/order_8/r1.csv", false},
		{"", "order_8/r1.csv", true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, underPrefix(tc.prefix, tc.path), "%s in %q", tc.path, tc.prefix)
	}
}
