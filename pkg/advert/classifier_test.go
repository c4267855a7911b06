package advert_test

import (
	"testing"

	"github.com/nearpair-protocol/nearpair-go/pkg/advert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassifyServiceData verifies rule 1: model id extraction from pairing
// service data.
func TestClassifyServiceData(t *testing.T) {
	c := advert.NewClassifier(advert.Options{})

	rec := advert.Record{
		Address:   "AA:BB:CC:DD:EE:01",
		LocalName: "Acme Buds Pro",
		ServiceData: map[uint16][]byte{
			advert.ServiceUUID: {0x72, 0xCF, 0x9C, 0xFF, 0xFF},
		},
	}

	cand, ok := c.Classify(rec)
	require.True(t, ok)
	assert.Equal(t, "72CF9C", cand.ModelID)
	assert.Equal(t, advert.ConfidenceServiceData, cand.Confidence)
	assert.Equal(t, advert.CategoryEarbuds, cand.Category)
}

// TestClassifyShortServiceData verifies that service data shorter than the
// model id never indexes past the buffer and disqualifies the record.
func TestClassifyShortServiceData(t *testing.T) {
	c := advert.NewClassifier(advert.Options{})

	for _, data := range [][]byte{nil, {}, {0x72}, {0x72, 0xCF}} {
		rec := advert.Record{
			Address: "AA:BB:CC:DD:EE:02",
			// UUID also in the list: rule 1 must not fall through to rule 2.
			ServiceUUIDs: []uint16{advert.ServiceUUID},
			ServiceData:  map[uint16][]byte{advert.ServiceUUID: data},
		}

		_, ok := c.Classify(rec)
		assert.False(t, ok, "service data %x must not classify", data)
	}
}

// TestClassifyPriorityOrder verifies first-match-wins across the four rules.
func TestClassifyPriorityOrder(t *testing.T) {
	tests := []struct {
		name     string
		rec      advert.Record
		wantOK   bool
		wantConf advert.Confidence
		wantID   string
	}{
		{
			name: "service uuid without data",
			rec: advert.Record{
				ServiceUUIDs:     []uint16{0x180F, advert.ServiceUUID},
				ManufacturerData: []byte{0xE0, 0x00, 0x01},
			},
			wantOK:   true,
			wantConf: advert.ConfidenceServiceUUID,
			wantID:   advert.ModelIDUnknown,
		},
		{
			name: "manufacturer data company id",
			rec: advert.Record{
				ManufacturerData: []byte{0xE0, 0x00, 0x01, 0x02},
				LocalName:        "Acme Speaker",
			},
			wantOK:   true,
			wantConf: advert.ConfidenceManufacturer,
		},
		{
			name: "wrong company id, name fallback",
			rec: advert.Record{
				ManufacturerData: []byte{0x4C, 0x00},
				LocalName:        "NoName Headset",
			},
			wantOK:   true,
			wantConf: advert.ConfidenceName,
		},
		{
			name: "manufacturer data too short for company id",
			rec: advert.Record{
				ManufacturerData: []byte{0xE0},
			},
			wantOK: false,
		},
		{
			name:   "no match at all",
			rec:    advert.Record{LocalName: "Thermostat"},
			wantOK: false,
		},
	}

	c := advert.NewClassifier(advert.Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand, ok := c.Classify(tt.rec)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantConf, cand.Confidence)
				assert.Equal(t, tt.wantID, cand.ModelID)
			}
		})
	}
}

// TestClassifyNameFallbackDisabled verifies callers can turn off rule 4.
func TestClassifyNameFallbackDisabled(t *testing.T) {
	c := advert.NewClassifier(advert.Options{DisableNameFallback: true})

	_, ok := c.Classify(advert.Record{LocalName: "Acme Buds"})
	assert.False(t, ok)
}

// TestModelIDRoundTrip verifies FormatModelID/ParseModelID are inverses.
func TestModelIDRoundTrip(t *testing.T) {
	tests := [][3]byte{
		{0x00, 0x00, 0x00},
		{0x72, 0xCF, 0x9C},
		{0xFF, 0xFF, 0xFF},
		{0x01, 0x23, 0x45},
	}

	for _, id := range tests {
		s := advert.FormatModelID(id)
		require.Len(t, s, 6)
		back, err := advert.ParseModelID(s)
		require.NoError(t, err)
		assert.Equal(t, id, back)
	}

	// Lowercase input parses too.
	id, err := advert.ParseModelID("72cf9c")
	require.NoError(t, err)
	assert.Equal(t, [3]byte{0x72, 0xCF, 0x9C}, id)

	for _, bad := range []string{"", "72CF", "72CF9C00", "72CF9G"} {
		_, err := advert.ParseModelID(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

// TestInferCategory verifies the pure name-based category heuristic.
func TestInferCategory(t *testing.T) {
	tests := []struct {
		name string
		want advert.Category
	}{
		{"Acme Buds Pro", advert.CategoryEarbuds},
		{"QuietPods 2", advert.CategoryEarbuds},
		{"Studio Headphones", advert.CategoryHeadphones},
		{"Gaming Headset X", advert.CategoryHeadphones},
		{"Boom Speaker", advert.CategorySpeaker},
		{"", advert.CategorySpeaker},
		{"Completely Unrelated", advert.CategorySpeaker},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, advert.InferCategory(tt.name), "name %q", tt.name)
	}
}
