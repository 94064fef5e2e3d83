package tuition

import (
	"testing"

	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeeLines() FeeLines {
	return FeeLines{
		{Name: "Tuition", Amount: decimal.NewFromInt(40000)},
		{Name: "Development Levy", Amount: decimal.NewFromInt(7500)},
		{Name: "PTA Dues", Amount: decimal.NewFromInt(2500)},
	}
}

func TestNewFeeStructure(t *testing.T) {
	session, err := valueobject.ParseSession("2023/2024")
	require.NoError(t, err)

	t.Run("creates structure with precomputed total", func(t *testing.T) {
		fs, err := NewFeeStructure("JSS1A", session, testFeeLines())
		require.NoError(t, err)

		assert.Equal(t, "JSS1A", fs.ClassID)
		assert.True(t, fs.Session.Equals(session))
		assert.Len(t, fs.Lines, 3)
		assert.True(t, fs.Total.Equal(decimal.NewFromInt(50000)))
		assert.Equal(t, 1, fs.GetVersion())

		events := fs.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "FeeStructureDefined", events[0].EventType())
	})

	t.Run("rejects empty class", func(t *testing.T) {
		_, err := NewFeeStructure("", session, testFeeLines())
		assert.Error(t, err)
	})

	t.Run("rejects zero session", func(t *testing.T) {
		_, err := NewFeeStructure("JSS1A", valueobject.Session{}, testFeeLines())
		assert.Error(t, err)
	})

	t.Run("rejects empty fee lines", func(t *testing.T) {
		_, err := NewFeeStructure("JSS1A", session, FeeLines{})
		assert.Error(t, err)
	})

	t.Run("rejects negative line amount", func(t *testing.T) {
		lines := FeeLines{{Name: "Tuition", Amount: decimal.NewFromInt(-100)}}
		_, err := NewFeeStructure("JSS1A", session, lines)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate line names", func(t *testing.T) {
		lines := FeeLines{
			{Name: "Tuition", Amount: decimal.NewFromInt(100)},
			{Name: "Tuition", Amount: decimal.NewFromInt(200)},
		}
		_, err := NewFeeStructure("JSS1A", session, lines)
		assert.Error(t, err)
	})
}

func TestFeeStructure_UpdateLines(t *testing.T) {
	session, _ := valueobject.ParseSession("2023/2024")
	fs, err := NewFeeStructure("JSS1A", session, testFeeLines())
	require.NoError(t, err)
	fs.ClearDomainEvents()

	t.Run("recomputes total and bumps version", func(t *testing.T) {
		newLines := FeeLines{{Name: "Tuition", Amount: decimal.NewFromInt(45000)}}

		require.NoError(t, fs.UpdateLines(newLines))
		assert.True(t, fs.Total.Equal(decimal.NewFromInt(45000)))
		assert.Equal(t, 2, fs.GetVersion())

		events := fs.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "FeeStructureUpdated", events[0].EventType())
	})

	t.Run("rejects invalid replacement lines", func(t *testing.T) {
		before := fs.Total
		assert.Error(t, fs.UpdateLines(FeeLines{}))
		assert.True(t, fs.Total.Equal(before))
	})
}

func TestFeeStructure_StorageKey(t *testing.T) {
	session, _ := valueobject.ParseSession("2023/2024")
	fs, err := NewFeeStructure("JSS1A", session, testFeeLines())
	require.NoError(t, err)

	key := fs.StorageKey()
	assert.Equal(t, "fee_JSS1A_2023-2024", key)
	assert.NotContains(t, key, "/")
}

func TestFeeLines_ScanValue(t *testing.T) {
	t.Run("round trips through driver value", func(t *testing.T) {
		original := testFeeLines()

		v, err := original.Value()
		require.NoError(t, err)

		var decoded FeeLines
		require.NoError(t, decoded.Scan(v))
		require.Len(t, decoded, 3)
		assert.Equal(t, "Tuition", decoded[0].Name)
		assert.True(t, decoded.Total().Equal(original.Total()))
	})

	t.Run("nil value scans to empty lines", func(t *testing.T) {
		var decoded FeeLines
		require.NoError(t, decoded.Scan(nil))
		assert.Empty(t, decoded)
	})

	t.Run("nil lines store as empty array", func(t *testing.T) {
		var lines FeeLines
		v, err := lines.Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})
}
