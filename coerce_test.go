package rowgraph

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverterFor_TextToBool(t *testing.T) {
	conv := converterFor(reflect.TypeOf(false), "1")

	cases := []struct {
		in   any
		want bool
	}{
		{"1", true},
		{"0", false},
		{"-3", true},
		{[]byte("7"), true},
	}
	for _, tc := range cases {
		got, err := conv(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := conv("yes")
	assert.Error(t, err)
}

func TestConverterFor_OptionalUnwrapsOneLevel(t *testing.T) {
	conv := converterFor(reflect.TypeOf((*int32)(nil)), "12")

	got, err := conv("12")
	require.NoError(t, err)
	assert.Equal(t, int32(12), got)

	conv = converterFor(reflect.TypeOf((*bool)(nil)), "1")
	got, err = conv("1")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestConvertTo(t *testing.T) {
	type Status string
	type Level int8

	tests := []struct {
		name string
		in   any
		to   reflect.Type
		want any
	}{
		{"int from string", "42", reflect.TypeOf(0), 42},
		{"int from float", 3.0, reflect.TypeOf(int64(0)), int64(3)},
		{"uint from int64", int64(9), reflect.TypeOf(uint16(0)), uint16(9)},
		{"float from string", "2.5", reflect.TypeOf(float32(0)), float32(2.5)},
		{"string from int", int64(5), reflect.TypeOf(""), "5"},
		{"string from bytes", []byte("hi"), reflect.TypeOf(""), "hi"},
		{"bytes from string", "hi", reflect.TypeOf([]byte(nil)), []byte("hi")},
		{"named string", "open", reflect.TypeOf(Status("")), Status("open")},
		{"named int", int64(2), reflect.TypeOf(Level(0)), Level(2)},
		{"bool from string", "true", reflect.TypeOf(false), true},
		{"duration from string", "1s", reflect.TypeOf(time.Duration(0)), time.Second},
		{"assignable passthrough", "x", reflect.TypeOf(""), "x"},
		{"nil stays nil", nil, reflect.TypeOf(0), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := convertTo(tc.in, tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConvertTo_Time(t *testing.T) {
	got, err := convertTo("2024-05-06T07:08:09Z", timeType)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC).Equal(got.(time.Time)))
}

func TestConvertTo_Overflow(t *testing.T) {
	_, err := convertTo(int64(300), reflect.TypeOf(int8(0)))
	assert.ErrorContains(t, err, "overflows")

	_, err = convertTo(int64(70000), reflect.TypeOf(uint16(0)))
	assert.ErrorContains(t, err, "overflows")
}

func TestConvertTo_NoConversion(t *testing.T) {
	_, err := convertTo(struct{}{}, reflect.TypeOf(make(chan int)))
	assert.Error(t, err)
}

func TestConvertTo_Scanner(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	got, err := convertTo(id.String(), reflect.TypeOf(uuid.UUID{}))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = convertTo([]byte("12.50"), reflect.TypeOf(decimal.Decimal{}))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.(decimal.Decimal)))

	_, err = convertTo("not-a-uuid", reflect.TypeOf(uuid.UUID{}))
	assert.Error(t, err)
}

func TestMap_ScannerMembers(t *testing.T) {
	type invoice struct {
		ID     uuid.UUID
		Total  decimal.Decimal
		Parent *uuid.UUID
	}
	m := NewMapper[invoice]()
	id := uuid.New()

	got, err := m.Map(NewRecord([]string{"id", "total", "parent"}, id.String(), "19.99", []byte(id.String())))
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "19.99", got.Total.String())
	require.NotNil(t, got.Parent)
	assert.Equal(t, id, *got.Parent)
}

func TestNeedsConversion(t *testing.T) {
	assert.False(t, needsConversion(nil, reflect.TypeOf(0)))
	assert.False(t, needsConversion(1, reflect.TypeOf(0)))
	assert.False(t, needsConversion(1, reflect.TypeOf((*int)(nil))))
	assert.True(t, needsConversion(int64(1), reflect.TypeOf(0)))
}
