package cursor

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jmakaron/dbcursor/internal/pkg/timeprovider"
	"github.com/jmakaron/dbcursor/pkg/logger"
)

// LoggerName is the name of the logger debug cursors write to.
const LoggerName = "db.backends"

// DebugWrapper is a Wrapper that also times Execute and ExecuteMany, appends
// every statement to the connection's query log and emits a debug record for
// it. Both happen whether the statement succeeds or not.
type DebugWrapper struct {
	*Wrapper
	log   *logger.Logger
	clock timeprovider.Provider
}

var _ Cursor = (*DebugWrapper)(nil)

func NewDebug(c Cursor, db Connection, log *logger.Logger, clock timeprovider.Provider) *DebugWrapper {
	if log == nil {
		log = logger.NewNop()
	}
	if clock == nil {
		clock = timeprovider.RealProvider{}
	}
	return &DebugWrapper{Wrapper: New(c, db), log: log.Named(LoggerName), clock: clock}
}

func (w *DebugWrapper) Execute(ctx context.Context, sql string, params []any) error {
	w.db.SetDirty()
	start := w.clock.Now()
	defer func() {
		duration := w.clock.Now().Sub(start).Seconds()
		rendered := w.db.Ops().LastExecutedQuery(w.cursor, sql, params)
		w.db.AppendQuery(QueryLogEntry{SQL: rendered, Time: formatDuration(duration)})
		w.log.Debug(fmt.Sprintf("(%.3f) %s; args=%v", duration, rendered, params),
			zap.Float64("duration", duration),
			zap.String("sql", rendered),
			zap.Any("params", params),
		)
	}()
	return w.db.WrapErrors(func() error { return w.cursor.Execute(ctx, sql, params) })
}

func (w *DebugWrapper) ExecuteMany(ctx context.Context, sql string, params ParamSeq) error {
	w.db.SetDirty()
	start := w.clock.Now()
	defer func() {
		duration := w.clock.Now().Sub(start).Seconds()
		times := "?"
		logged := any(times)
		if sized, ok := params.(interface{ Len() int }); ok {
			times = strconv.Itoa(sized.Len())
			logged = params
		}
		w.db.AppendQuery(QueryLogEntry{SQL: fmt.Sprintf("%s times: %s", times, sql), Time: formatDuration(duration)})
		w.log.Debug(fmt.Sprintf("(%.3f) %s; args=%v", duration, sql, logged),
			zap.Float64("duration", duration),
			zap.String("sql", sql),
			zap.Any("params", logged),
		)
	}()
	return w.db.WrapErrors(func() error { return w.cursor.ExecuteMany(ctx, sql, params) })
}

func formatDuration(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
