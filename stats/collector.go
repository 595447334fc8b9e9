package stats

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
	"github.com/sirupsen/logrus"
)

// Message is a minimal record of one guild message for counting purposes
type Message struct {
	GuildID   int64
	ChannelID int64
}

type bucketKey struct {
	GuildID   int64
	ChannelID int64
}

// Collector buffers message counts per channel in memory and periodically
// flushes them into the hourly stats table; counts flushed within the same
// hour accumulate onto the same row
type Collector struct {
	MsgEvtChan chan *Message

	interval time.Duration
	buckets  map[bucketKey]int64
	l        *logrus.Entry
}

func NewCollector(l *logrus.Entry, flushInterval time.Duration) *Collector {
	col := &Collector{
		MsgEvtChan: make(chan *Message, 1000),
		interval:   flushInterval,
		buckets:    make(map[bucketKey]int64),
		l:          l,
	}

	go col.run()

	return col
}

func (c *Collector) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.MsgEvtChan:
			c.handleIncMessage(msg)
		case <-ticker.C:
			err := c.flush()
			if err != nil {
				c.l.Errorf("failed flushing activity stats: %+v", err)
			}
		}
	}
}

func (c *Collector) handleIncMessage(msg *Message) {
	c.buckets[bucketKey{GuildID: msg.GuildID, ChannelID: msg.ChannelID}]++
}

// snapshot drains the in memory counts
func (c *Collector) snapshot() map[bucketKey]int64 {
	counts := c.buckets
	c.buckets = make(map[bucketKey]int64)
	return counts
}

func (c *Collector) flush() error {
	counts := c.snapshot()
	if len(counts) < 1 {
		return nil
	}

	c.l.Debugf("flushing activity stats for %d channels", len(counts))

	const q = `
	INSERT INTO activity_stats_hourly (guild_id, channel_id, t, count)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (guild_id, channel_id, t) DO UPDATE
	SET count = activity_stats_hourly.count + $4`

	hour := time.Now().UTC().Truncate(time.Hour)

	tx, err := common.PQ.BeginTx(context.Background(), nil)
	if err != nil {
		return errors.WithStackIf(err)
	}

	for key, count := range counts {
		_, err = tx.Exec(q, key.GuildID, key.ChannelID, hour, count)
		if err != nil {
			tx.Rollback()
			return errors.WithStackIf(err)
		}
	}

	return errors.WithStackIf(tx.Commit())
}
