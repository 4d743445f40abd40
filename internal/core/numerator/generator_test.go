package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "PO-2026-00042", Format(DefaultConfig("PO"), period, 42))
	assert.Equal(t, "PAY-0007", Format(Config{Prefix: "PAY", PadWidth: 4}, period, 7))
}

func TestMockGeneratorCountsPerPrefix(t *testing.T) {
	gen := &MockGenerator{}
	ctx := context.Background()
	period := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := gen.GetNextNumber(ctx, DefaultConfig(PrefixInvoice), period)
	require.NoError(t, err)
	second, err := gen.GetNextNumber(ctx, DefaultConfig(PrefixInvoice), period)
	require.NoError(t, err)
	other, err := gen.GetNextNumber(ctx, DefaultConfig(PrefixPayment), period)
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-00001", first)
	assert.Equal(t, "INV-2026-00002", second)
	assert.Equal(t, "PAY-2026-00001", other)
}
