package progress

import (
	"sync"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
	"go.uber.org/zap"
)

// LogReporter renders progress as structured log lines. Used by the worker
// where there is no terminal.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) AddOverall(description string, total int) {
	r.logger.Info("album started", zap.String("album", description), zap.Int("items", total))
}

func (r *LogReporter) AddItem(index int, description string) port.ItemProgress {
	return &logItem{logger: r.logger.With(zap.Int("item", index), zap.String("item_desc", description))}
}

func (r *LogReporter) Log(event, message string) {
	r.logger.Info(event, zap.String("detail", message))
}

type logItem struct {
	logger *zap.Logger
	once   sync.Once
}

func (i *logItem) Update(float64) {}

func (i *logItem) Hide() {
	i.once.Do(func() { i.logger.Debug("item hidden") })
}

func (i *logItem) Done() {
	i.once.Do(func() { i.logger.Debug("item completed") })
}
