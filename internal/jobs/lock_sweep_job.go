package jobs

import (
	"log"

	"github.com/distrimax/fulfillgo/internal/packing"
	"github.com/robfig/cron/v3"
)

// LockSweepJob periodically reclaims lapsed packing locks so abandoned
// orders drop back to paused and become available to other operators.
type LockSweepJob struct {
	locks    *packing.LockManager
	cron     *cron.Cron
	schedule string
}

// NewLockSweepJob creates the sweep job with a cron schedule
// (e.g. "@every 1m")
func NewLockSweepJob(locks *packing.LockManager, schedule string) *LockSweepJob {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &LockSweepJob{
		locks:    locks,
		cron:     cron.New(),
		schedule: schedule,
	}
}

// Start begins the periodic sweep. The sweep is idempotent: a run with
// no new expirations is a no-op.
func (j *LockSweepJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		reclaimed, err := j.locks.ExpireStaleLocks()
		if err != nil {
			log.Printf("❌ Lock sweep failed: %v", err)
			return
		}
		if reclaimed > 0 {
			log.Printf("🧹 Lock sweep: reclaimed %d stale lock(s)", reclaimed)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	log.Printf("✅ Lock sweep started (%s)", j.schedule)
	return nil
}

// Stop stops the sweep job
func (j *LockSweepJob) Stop() {
	j.cron.Stop()
	log.Println("🛑 Lock sweep stopped")
}
