package identifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tenantkit/tenantkit/pkg/identifier"
)

func TestSecureCompare(t *testing.T) {
	t.Parallel()

	assert.True(t, identifier.SecureCompare("tenant-abc", "tenant-abc"))
	assert.False(t, identifier.SecureCompare("tenant-abc", "tenant-abd"))
	assert.False(t, identifier.SecureCompare("tenant-abc", "tenant-ab"))
	assert.True(t, identifier.SecureCompare("", ""))
	assert.False(t, identifier.SecureCompare("", "x"))
}
