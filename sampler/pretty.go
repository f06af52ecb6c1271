package sampler

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tsawler/go-datasource/dataset"
	"go.uber.org/zap"
)

// maxPrettyClasses bounds the number of classes listed in progress logs
const maxPrettyClasses = 50

// Pretty logs a description of the sampler
func (b *Base) Pretty() {
	b.logger.Info("Dataset",
		zap.String("name", b.name),
		zap.String("samples", humanize.Comma(int64(b.n))),
		zap.Ints("sample_shape", dataset.SampleShape(b.store)),
		zap.Bool("test_only", b.testOnly))
	if b.testOnly {
		return
	}
	b.logger.Info("Training iteration",
		zap.Bool("shuffle_passes", b.shufflePasses),
		zap.Bool("weigh_samples", b.weigh.Enabled),
		zap.Stringer("epoch_mode", b.epochMode),
		zap.Int("epoch_size", b.epochSize))
}

// Pretty logs a description of the sampler and its labels
func (l *Labeled) Pretty() {
	l.Base.Pretty()
	l.logger.Info("Labels",
		zap.Stringer("type", l.labels.DataType()),
		zap.Int("dim", l.labels.Dim()),
		zap.Bool("jitters", l.jitters != nil))
	if tally := l.ScaleTally(); tally != nil {
		l.logger.Info("Samples per scale", zap.String("counts", formatInts(tally)))
	}
}

// Pretty logs a description of the sampler and its classes
func (c *Class) Pretty() {
	c.Labeled.Pretty()
	c.logger.Info("Classes",
		zap.Int("nclasses", c.NClasses()),
		zap.Int("total", c.nclasses),
		zap.Bool("balanced", c.balanced),
		zap.Bool("random_order", c.randomOrder))
	for k := 0; k < c.nclasses; k++ {
		if c.exclusion && c.excluded[k] {
			continue
		}
		fields := []zap.Field{
			zap.Int("id", k),
			zap.String("name", c.liveNames[k]),
			zap.String("samples", humanize.Comma(int64(c.counts[k]))),
		}
		if c.scales != nil {
			cls := k
			tally := c.scales.Tally(func(i int) bool { return c.derived[i] == cls })
			fields = append(fields, zap.String("scales", formatInts(tally)))
		}
		c.logger.Debug("Class", fields...)
	}
	if c.exclusion {
		var names []string
		for k, ex := range c.excluded {
			if ex {
				names = append(names, c.liveNames[k])
			}
		}
		c.logger.Info("Excluded classes", zap.Strings("names", names))
	}
}

// Pretty logs a description of the sampler and its taxonomy, depth by depth
func (h *Hierarchy) Pretty() {
	h.Class.Pretty()
	h.logger.Info("Hierarchy",
		zap.Int("depths", h.tree.NumDepths()),
		zap.Int("current_depth", h.depth),
		zap.Bool("depth_balanced", h.depthBalanced))
	for d := 0; d < h.tree.NumDepths(); d++ {
		var names []string
		for _, l := range h.tree.Depth(d) {
			n := h.tree.Node(l)
			names = append(names, fmt.Sprintf("%s (%d)", n.Name, n.NumSamples()))
		}
		h.logger.Debug("Depth", zap.Int("depth", d), zap.Strings("nodes", names))
	}
}

// PrettyProgress logs the epoch progress every EpochShow samples
func (b *Base) PrettyProgress() {
	count, total := b.epochCnt, b.epochSize
	start := b.epochStart
	if b.testOnly {
		count, total, start = b.itTest, b.n, b.testStart
	}
	if !b.shouldShow(count) {
		return
	}
	b.logger.Info("Progress", b.progressFields(count, total, start)...)
}

// PrettyProgress logs the epoch progress every EpochShow picked samples,
// with the per class counters when there are few classes
func (c *Class) PrettyProgress() {
	if c.testOnly || !c.balanced {
		c.Base.PrettyProgress()
		return
	}
	if !c.shouldShow(c.epochPickCnt) {
		return
	}

	fields := c.progressFields(c.epochCnt, c.epochSize, c.epochStart)
	if c.nclasses < maxPrettyClasses {
		fields = append(fields, zap.String("remaining", formatInts(c.remaining)))
	}
	c.logger.Info("Progress", fields...)
}

func (b *Base) shouldShow(count int) bool {
	if b.epochShow <= 0 || count == 0 || count%b.epochShow != 0 || count == b.epochShowPrinted {
		return false
	}
	b.epochShowPrinted = count
	return true
}

func (b *Base) progressFields(count, total int, start time.Time) []zap.Field {
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.String("count", humanize.Comma(int64(count))),
		zap.String("total", humanize.Comma(int64(total))),
		zap.Int("picked", b.epochPickCnt),
		zap.Duration("elapsed", elapsed.Round(time.Millisecond)),
	}
	if count > 0 && total > count {
		eta := time.Duration(float64(elapsed) / float64(count) * float64(total-count))
		fields = append(fields, zap.Duration("eta", eta.Round(time.Second)))
	}
	return fields
}

func formatInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, " ")
}
