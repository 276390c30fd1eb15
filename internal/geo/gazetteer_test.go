package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGazetteer_Extract(t *testing.T) {
	g := NewGazetteer()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single english place",
			text: "Flooding reported in Sylhet after heavy rain",
			want: []string{"sylhet"},
		},
		{
			name: "bengali and english map to one key",
			text: "সিলেট flooding: officials in Sylhet respond",
			want: []string{"sylhet"},
		},
		{
			name: "longest alias wins over embedded shorter one",
			text: "Traffic in Dhaka city ground to a halt",
			want: []string{"dhaka"},
		},
		{
			name: "apostrophe place name",
			text: "Tourists returned to Cox's Bazar on Friday",
			want: []string{"coxs_bazar"},
		},
		{
			name: "first occurrence order",
			text: "From Khulna to Rajshahi, farmers reported losses",
			want: []string{"khulna", "rajshahi"},
		},
		{
			name: "embedded in longer word does not match",
			text: "The feniculture exhibit opened downtown",
			want: nil,
		},
		{
			name: "no places",
			text: "Parliament passed the budget yesterday",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Extract(tt.text))
		})
	}
}

func TestGazetteer_ExtractDeduplicates(t *testing.T) {
	g := NewGazetteer()
	got := g.Extract("Dhaka police said the Dhaka road reopened near Dhaka")
	assert.Equal(t, []string{"dhaka"}, got)
}

func TestPlaceQuery(t *testing.T) {
	assert.Equal(t, "coxs bazar", placeQuery("coxs_bazar"))
	assert.Equal(t, "sylhet", placeQuery("sylhet"))
}
