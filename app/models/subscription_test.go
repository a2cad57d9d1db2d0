package models

import (
	"testing"
	"time"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
	"github.com/stretchr/testify/assert"
)

func TestUsageIncrementAndCount(t *testing.T) {
	var u Usage
	for _, f := range feature.All() {
		assert.True(t, u.Increment(f))
		assert.Equal(t, 1, u.Count(f))
		assert.NotEmpty(t, CounterColumn(f))
	}

	assert.False(t, u.Increment(feature.Unknown))
	assert.Equal(t, 0, u.Count(feature.Unknown))
	assert.Equal(t, "", CounterColumn(feature.Unknown))
}

func TestSubscriptionResetUsage(t *testing.T) {
	s := &Subscription{Usage: Usage{LyricsGenerated: 3, MusicGenerated: 2, VideoGenerated: 1, VoiceGenerated: 4}}
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	s.ResetUsage(start, end)

	for _, f := range feature.All() {
		assert.Equal(t, 0, s.Usage.Count(f))
	}
	assert.Equal(t, start, s.Usage.PeriodStart)
	assert.Equal(t, end, s.Usage.PeriodEnd)
}

func TestSubscriptionHasPayment(t *testing.T) {
	s := &Subscription{PaymentHistory: []PaymentRecord{{GatewayPaymentID: "pay_1", Status: PaymentCaptured}}}

	assert.True(t, s.HasPayment("pay_1", PaymentCaptured))
	assert.False(t, s.HasPayment("pay_1", PaymentFailed))
	assert.False(t, s.HasPayment("pay_2", PaymentCaptured))
}

func TestStatusEntitling(t *testing.T) {
	assert.True(t, SubscriptionActive.Entitling())
	assert.True(t, SubscriptionTrial.Entitling())
	assert.False(t, SubscriptionPastDue.Entitling())
	assert.False(t, SubscriptionCancelled.Entitling())
	assert.False(t, SubscriptionExpired.Entitling())
}
