package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
)

type mockKVCache struct {
	store map[string][]byte
	gets  int
	sets  int
}

func (m *mockKVCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockKVCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	m.store[key] = raw
	return nil
}

func TestAvailabilityIndexOn(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	shifts := &mockShiftRepo{windows: []models.ShiftWindow{
		{StaffID: "staff-a", Date: date, Window: models.MinuteRange{Start: 480, End: 720}},
		{StaffID: "staff-a", Date: date, Window: models.MinuteRange{Start: 780, End: 1020}},
		{StaffID: "staff-b", Date: date, Window: models.MinuteRange{Start: 540, End: 900}},
		// Inverted window from bad data is dropped, not fatal.
		{StaffID: "staff-c", Date: date, Window: models.MinuteRange{Start: 700, End: 600}},
	}}
	svc := NewAvailabilityService(shifts, nil, time.Minute, zap.NewNop(), nil)

	index, err := svc.IndexOn(context.Background(), date)
	require.NoError(t, err)
	assert.Len(t, index["staff-a"], 2)
	assert.Len(t, index["staff-b"], 1)
	assert.NotContains(t, index, "staff-c")
}

func TestAvailabilityIndexCaching(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	shifts := &mockShiftRepo{windows: []models.ShiftWindow{
		{StaffID: "staff-a", Date: date, Window: models.MinuteRange{Start: 480, End: 720}},
	}}
	cache := &mockKVCache{}
	svc := NewAvailabilityService(shifts, cache, time.Minute, zap.NewNop(), nil)

	first, err := svc.IndexOn(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.IndexOn(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.sets)
}

func TestOnDuty(t *testing.T) {
	index := map[string][]models.MinuteRange{
		"staff-a": {{Start: 480, End: 720}},
	}

	assert.True(t, OnDuty(index, "staff-a", models.MinuteRange{Start: 480, End: 720}))
	assert.True(t, OnDuty(index, "staff-a", models.MinuteRange{Start: 600, End: 660}))
	// Partial overlap is not coverage.
	assert.False(t, OnDuty(index, "staff-a", models.MinuteRange{Start: 700, End: 760}))
	assert.False(t, OnDuty(index, "staff-b", models.MinuteRange{Start: 600, End: 660}))
}
