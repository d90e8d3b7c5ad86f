package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateLabel(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2025, 7, 20, 12, 0, 0, 0, loc)

	testCases := []struct {
		name      string
		label     string
		expected  time.Time
		expectErr bool
	}{
		{
			name:     "Standard label",
			label:    "7/24(木)",
			expected: time.Date(2025, 7, 24, 0, 0, 0, 0, loc),
		},
		{
			name:     "Single digit day",
			label:    "8/1(金)",
			expected: time.Date(2025, 8, 1, 0, 0, 0, 0, loc),
		},
		{
			name:     "Whitespace around label",
			label:    "  7/24(木) ",
			expected: time.Date(2025, 7, 24, 0, 0, 0, 0, loc),
		},
		{
			name:     "January label seen in December rolls to next year",
			label:    "1/5(月)",
			expected: time.Date(2026, 1, 5, 0, 0, 0, 0, loc),
		},
		{
			name:      "Not a date",
			label:     "スタジオ",
			expectErr: true,
		},
		{
			name:      "Month out of range",
			label:     "13/40(月)",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			refNow := now
			if tc.name == "January label seen in December rolls to next year" {
				refNow = time.Date(2025, 12, 28, 12, 0, 0, 0, loc)
			}
			d, err := DateLabel(tc.label, refNow, loc)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, d.Equal(tc.expected), "got %v, want %v", d, tc.expected)
		})
	}
}

func TestTimeRange(t *testing.T) {
	testCases := []struct {
		raw       string
		start     string
		end       string
		expectErr bool
	}{
		{raw: "07:30 - 08:15", start: "07:30", end: "08:15"},
		{raw: "19:30-20:15", start: "19:30", end: "20:15"},
		{raw: "7:30 - 8:15", start: "07:30", end: "08:15"},
		{raw: "10:00 ~ 10:45", start: "10:00", end: "10:45"},
		{raw: "nonsense", expectErr: true},
		{raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			start, end, err := TimeRange(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}

func TestStudioEntry(t *testing.T) {
	testCases := []struct {
		raw       string
		name      string
		code      string
		expectErr bool
	}{
		{raw: "銀座(GNZ)", name: "銀座", code: "gnz"},
		{raw: "横浜（YKH）", name: "横浜", code: "ykh"},
		{raw: "池袋 (IKB) ", name: "池袋", code: "ikb"},
		{raw: "no code here", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			name, code, err := StudioEntry(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestProgram(t *testing.T) {
	testCases := []struct {
		className string
		expected  string
	}{
		{"BB2 House 1", "BB2"},
		{"BSL Deep 1", "BSL"},
		{"BSW Comp 2", "BSW"},
		{"BSWi HipHop 2", "BSWi"},
		{"BSB Rock 1", "BSB"},
		{"BSBi Reggae 1", "BSBi"},
		{"RB 1", "RB"},
		{"Yoga Flow", "OTHER"},
		{"", "OTHER"},
	}

	for _, tc := range testCases {
		t.Run(tc.className, func(t *testing.T) {
			assert.Equal(t, tc.expected, Program(tc.className))
		})
	}
}

func TestAvailable(t *testing.T) {
	assert.True(t, Available("残り5席"))
	assert.True(t, Available(""))
	assert.False(t, Available("満席"))
	assert.False(t, Available("× 予約受付終了"))
	assert.False(t, Available("seat-disabled"))
	assert.False(t, Available("キャンセル待ち"))
}

func TestSeatCounts(t *testing.T) {
	testCases := []struct {
		status    string
		available int
		total     int
	}{
		{"残り2/20", 2, 20},
		{"2 / 20", 2, 20},
		{"残り3席", 3, 0},
		{"残りわずか", 0, 0},
		{"", 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			available, total := SeatCounts(tc.status)
			assert.Equal(t, tc.available, available)
			assert.Equal(t, tc.total, total)
		})
	}
}
