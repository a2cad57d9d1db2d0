package usagegate

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/metrics"
)

// Recorder counts successful generations.
type Recorder struct {
	subs    SubscriptionSource
	metrics *metrics.Metrics
}

func NewRecorder(subs SubscriptionSource, m *metrics.Metrics) *Recorder {
	return &Recorder{subs: subs, metrics: m}
}

// Record increments the user's counter for f. The subscription is loaded again
// so a period that rolled over since the check is counted in the new period.
// Failures are logged and never returned.
func (r *Recorder) Record(ctx context.Context, userID uint, f feature.Type) {
	if userID == 0 || !f.Valid() {
		return
	}
	sub, err := r.subs.GetForUser(ctx, userID)
	if err != nil {
		log.Errorf("[UsageRecorder] load subscription for user %d failed, %s not counted: %v", userID, f, err)
		r.metrics.FailOpen("record")
		return
	}
	if sub == nil {
		log.Warnf("[UsageRecorder] user %d has no subscription, %s not counted", userID, f)
		return
	}
	if err := r.subs.IncrementUsage(ctx, sub, f); err != nil {
		log.Errorf("[UsageRecorder] %v", err)
		r.metrics.FailOpen("record")
		return
	}
	r.metrics.UsageRecorded(f.String())
}
