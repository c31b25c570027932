package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	text := "flooding near the station https://t.co/abc123 cc @emergency_gov"

	assert.Equal(t, "flooding near the station  cc", CleanText(text))
}

func TestNormalizeAggressive(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "mentions and urls",
			in:   "@floodwatch river rising https://t.co/abc123",
			want: "_USER_ river rising _URL_",
		},
		{
			name: "times",
			in:   "evacuation at 10:30 pm, update 23:59",
			want: "evacuation at _TIME_, update _TIME_",
		},
		{
			name: "ampersand and whitespace",
			in:   "wind &amp; rain\nall   night",
			want: "wind and rain all night",
		},
		{
			name: "trailing broken url",
			in:   "road closed see https",
			want: "road closed see _URL_",
		},
		{
			name: "strips emoji",
			in:   "stay safe \U0001F30A\U0001F30A everyone",
			want: "stay safe everyone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAggressive(tt.in))
		})
	}
}

func TestFilterTokens(t *testing.T) {
	in := []string{"rt", "flood", "a", "https", "water", "flood", "Ftp"}

	assert.Equal(t, []string{"flood", "water"}, FilterTokens(in))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("same", "same"))
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 0.0, Ratio("abcd", "wxyz"))

	// Near-duplicate pair used throughout duplicate detection.
	got := Ratio(
		"flood water rising fast near the bridge",
		"flood water rising fast near the bridge!!",
	)
	assert.GreaterOrEqual(t, got, 0.8)

	dissimilar := Ratio("flood water rising", "concert tickets on sale tonight")
	assert.Less(t, dissimilar, 0.8)
}
