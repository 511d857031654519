package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Fields
	}{
		{"all keys", `{"id":42,"_to":1,"_from":2}`, Fields{ID: ptr(42), To: ptr(1), From: ptr(2)}},
		{"id only", `{"id":7,"method":"get_prop","params":[]}`, Fields{ID: ptr(7)}},
		{"no keys", `{"method":"local.query_status"}`, Fields{}},
		{"max uint64", `{"id":18446744073709551615}`, Fields{ID: ptr(18446744073709551615)}},
		{"negative id ignored", `{"id":-1}`, Fields{}},
		{"float id ignored", `{"id":42.0}`, Fields{}},
		{"exponent id ignored", `{"id":4e1}`, Fields{}},
		{"string id ignored", `{"id":"42"}`, Fields{}},
		{"overflow ignored", `{"id":18446744073709551616}`, Fields{}},
		{"null ignored", `{"id":null,"_to":3}`, Fields{To: ptr(3)}},
		{"array document", `[1,2,3]`, Fields{}},
		{"scalar document", `42`, Fields{}},
		{"surrounding whitespace", " \n{\"id\":5}\n ", Fields{ID: ptr(5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFields([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFields_Malformed(t *testing.T) {
	for _, payload := range []string{
		``,
		`{`,
		`{"id":42`,
		`not json`,
		`{"id":1}{"id":2}`,
		`{"id":1} trailing`,
	} {
		_, err := ParseFields([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformedPayload, "payload %q", payload)
	}
}

func TestParseID(t *testing.T) {
	id, ok, err := ParseID([]byte(`{"id":42,"result":"ok"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)

	_, ok, err = ParseID([]byte(`{"event":"motion"}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseID([]byte(`{oops`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseFields_RejectsInvalidUTF8(t *testing.T) {
	_, err := ParseFields([]byte("{\"id\":7,\"name\":\"\xff\xfe\"}"))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	f, err := ParseFields([]byte(`{"id":7,"name":"caf\u00e9 ☕"}`))
	require.NoError(t, err)
	require.NotNil(t, f.ID)
	assert.Equal(t, uint64(7), *f.ID)
}

func TestMalformedCommandLeavesSlotUntouched(t *testing.T) {
	s := NewSlot()
	s.Observe(Fields{ID: ptr(42), To: ptr(1), From: ptr(2)})

	if f, err := ParseFields([]byte(`{"id":99`)); err == nil {
		s.Observe(f)
	}

	assert.Equal(t, Record{PendingID: 42, Destination: 1, Origin: 2}, s.Snapshot())
}
