package dbcursor

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jmakaron/dbcursor/internal/app/dbcursor/store"
	"github.com/jmakaron/dbcursor/internal/app/dbcursor/types"
	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
	"github.com/jmakaron/dbcursor/internal/pkg/dberr"
	httpsrv "github.com/jmakaron/dbcursor/internal/pkg/http"
	"github.com/jmakaron/dbcursor/internal/pkg/typecast"
)

const (
	queryExec    = "query-exec"
	queryMany    = "query-executemany"
	queryCall    = "query-callproc"
	txBegin      = "tx-begin"
	txCommit     = "tx-commit"
	txRollback   = "tx-rollback"
	queryLogList = "querylog-list"
	queryLogGet  = "querylog-get"
	queryLogDel  = "querylog-reset"
	statusGet    = "status-get"
)

var ErrBadRequest = errors.New("bad request")

func (c *ServiceComponent) getRestAPI() (httpsrv.RouteLayout, *httpsrv.RouterSpec) {
	rl := httpsrv.RouteLayout{
		"/query": {
			queryExec: {Method: http.MethodPost, Path: ""},
		},
		"/executemany": {
			queryMany: {Method: http.MethodPost, Path: ""},
		},
		"/callproc": {
			queryCall: {Method: http.MethodPost, Path: ""},
		},
		"/begin": {
			txBegin: {Method: http.MethodPost, Path: ""},
		},
		"/commit": {
			txCommit: {Method: http.MethodPost, Path: ""},
		},
		"/rollback": {
			txRollback: {Method: http.MethodPost, Path: ""},
		},
		"/queries": {
			queryLogList: {Method: http.MethodGet, Path: ""},
			queryLogGet:  {Method: http.MethodGet, Path: "/{id1}"},
			queryLogDel:  {Method: http.MethodDelete, Path: ""},
		},
		"/status": {
			statusGet: {Method: http.MethodGet, Path: ""},
		}}
	rs := httpsrv.RouterSpec{
		queryExec:    c.queryExecHandler,
		queryMany:    c.queryManyHandler,
		queryCall:    c.queryCallHandler,
		txBegin:      c.txHandler(c.beginTx),
		txCommit:     c.txHandler(c.commitTx),
		txRollback:   c.txHandler(c.rollbackTx),
		queryLogList: c.queryLogListHandler,
		queryLogGet:  c.queryLogGetHandler,
		queryLogDel:  c.queryLogResetHandler,
		statusGet:    c.statusHandler,
	}
	return rl, &rs
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return err
	}
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
	return nil
}

// statusFor maps a translated database error to an HTTP status.
func statusFor(err error) int {
	switch dberr.Kind(err) {
	case dberr.ErrProgramming, dberr.ErrData, dberr.ErrIntegrity:
		return http.StatusBadRequest
	case dberr.ErrNotSupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) error {
	status := http.StatusInternalServerError
	kind := ""
	switch {
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	case dberr.Kind(err) != nil:
		status = statusFor(err)
		kind = dberr.Kind(err).Error()
	}
	if werr := writeJSON(w, status, types.ErrorResponse{Kind: kind, Error: err.Error()}); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	d := json.NewDecoder(r.Body)
	d.UseNumber()
	if err := d.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

// normalizeParams turns decoded JSON numbers into int64 or float64 and
// decimal objects into their text rendering.
func normalizeParams(ops *store.Ops, params []any) ([]any, error) {
	for i, p := range params {
		switch x := p.(type) {
		case json.Number:
			if v, err := x.Int64(); err == nil {
				params[i] = v
			} else if f, err := x.Float64(); err == nil {
				params[i] = f
			}
		case map[string]any:
			v, err := decimalParam(ops, x)
			if err != nil {
				return nil, errors.Join(ErrBadRequest, fmt.Errorf("param %d: %w", i, err))
			}
			params[i] = v
		}
	}
	return params, nil
}

func decimalParam(ops *store.Ops, m map[string]any) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	var dp types.DecimalParam
	if err = json.Unmarshal(b, &dp); err != nil {
		return "", err
	}
	n, err := typecast.ParseDecimal(dp.Decimal)
	if err != nil {
		return "", err
	}
	if !n.Valid {
		return "", errors.New("missing decimal")
	}
	return ops.AdaptDecimal(n, dp.MaxDigits, dp.DecimalPlaces)
}

// jsonValue renders a fetched value for the response body. Types without a
// JSON encoding fall back to their driver value.
func jsonValue(v any) any {
	switch x := v.(type) {
	case json.Marshaler:
		return x
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return nil
		}
		return dv
	}
	return v
}

func renderRows(rows []cursor.Row) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(r))
		for j, v := range r {
			vals[j] = jsonValue(v)
		}
		out[i] = vals
	}
	return out
}

// collect reads every result set of cur.
func collect(cur cursor.Cursor) (types.QueryResponse, error) {
	resp := types.QueryResponse{Columns: cur.Description(), RowCount: cur.RowCount(), Rows: [][]any{}}
	if resp.Columns == nil {
		return resp, nil
	}
	rows, err := cur.FetchAll()
	if err != nil {
		return resp, err
	}
	resp.Rows = renderRows(rows)
	for {
		more, err := cur.NextSet()
		if errors.Is(err, dberr.ErrNotSupported) || (err == nil && !more) {
			break
		}
		if err != nil {
			return resp, err
		}
		rows, err = cur.FetchAll()
		if err != nil {
			return resp, err
		}
		resp.Sets = append(resp.Sets, types.QueryResponse{
			Columns:  cur.Description(),
			Rows:     renderRows(rows),
			RowCount: cur.RowCount(),
		})
	}
	return resp, nil
}

// withCursor runs fn on a fresh cursor holding the connection lock.
func (c *ServiceComponent) withCursor(ctx context.Context, fn func(cursor.Cursor) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publishQueries()
	cur, err := c.conn.Cursor(ctx)
	if err != nil {
		return err
	}
	defer cur.Close()
	return fn(cur)
}

func (c *ServiceComponent) queryExecHandler(w http.ResponseWriter, r *http.Request) error {
	var req types.QueryRequest
	if err := decodeBody(r, &req); err != nil {
		return writeError(w, err)
	}
	if req.SQL == "" {
		return writeError(w, errors.Join(ErrBadRequest, errors.New("missing sql")))
	}
	var resp types.QueryResponse
	err := c.withCursor(r.Context(), func(cur cursor.Cursor) error {
		params, err := normalizeParams(c.conn.VendorOps(), req.Params)
		if err != nil {
			return err
		}
		if err = cur.Execute(r.Context(), req.SQL, params); err != nil {
			return err
		}
		resp, err = collect(cur)
		return err
	})
	if err != nil {
		return writeError(w, err)
	}
	return writeJSON(w, http.StatusOK, resp)
}

func (c *ServiceComponent) queryManyHandler(w http.ResponseWriter, r *http.Request) error {
	var req types.ExecuteManyRequest
	if err := decodeBody(r, &req); err != nil {
		return writeError(w, err)
	}
	if req.SQL == "" {
		return writeError(w, errors.Join(ErrBadRequest, errors.New("missing sql")))
	}
	var resp types.QueryResponse
	err := c.withCursor(r.Context(), func(cur cursor.Cursor) error {
		params := make(cursor.ParamList, len(req.Params))
		for i, p := range req.Params {
			var err error
			if params[i], err = normalizeParams(c.conn.VendorOps(), p); err != nil {
				return err
			}
		}
		if err := cur.ExecuteMany(r.Context(), req.SQL, params); err != nil {
			return err
		}
		resp = types.QueryResponse{RowCount: cur.RowCount(), Rows: [][]any{}}
		return nil
	})
	if err != nil {
		return writeError(w, err)
	}
	return writeJSON(w, http.StatusOK, resp)
}

func (c *ServiceComponent) queryCallHandler(w http.ResponseWriter, r *http.Request) error {
	var req types.CallProcRequest
	if err := decodeBody(r, &req); err != nil {
		return writeError(w, err)
	}
	if req.Name == "" {
		return writeError(w, errors.Join(ErrBadRequest, errors.New("missing name")))
	}
	var resp types.QueryResponse
	err := c.withCursor(r.Context(), func(cur cursor.Cursor) error {
		params, err := normalizeParams(c.conn.VendorOps(), req.Params)
		if err != nil {
			return err
		}
		if err = cur.CallProc(r.Context(), req.Name, params); err != nil {
			return err
		}
		resp, err = collect(cur)
		return err
	})
	if err != nil {
		return writeError(w, err)
	}
	return writeJSON(w, http.StatusOK, resp)
}

func (c *ServiceComponent) beginTx(ctx context.Context) error {
	return c.conn.Begin(ctx)
}

func (c *ServiceComponent) commitTx(ctx context.Context) error {
	return c.conn.Commit(ctx)
}

func (c *ServiceComponent) rollbackTx(ctx context.Context) error {
	return c.conn.Rollback(ctx)
}

func (c *ServiceComponent) txHandler(fn func(context.Context) error) httpsrv.HandlerWithError {
	return func(w http.ResponseWriter, r *http.Request) error {
		c.mu.Lock()
		err := fn(r.Context())
		status := c.status()
		c.mu.Unlock()
		if err != nil {
			return writeError(w, err)
		}
		return writeJSON(w, http.StatusOK, status)
	}
}

func (c *ServiceComponent) status() types.StatusResponse {
	return types.StatusResponse{
		Vendor:        c.conn.VendorOps().Vendor(),
		Dirty:         c.conn.IsDirty(),
		Debug:         c.conn.Debug(),
		InTransaction: c.conn.InTransaction(),
	}
}

func (c *ServiceComponent) statusHandler(w http.ResponseWriter, r *http.Request) error {
	c.mu.Lock()
	status := c.status()
	c.mu.Unlock()
	return writeJSON(w, http.StatusOK, status)
}

func (c *ServiceComponent) queryLogListHandler(w http.ResponseWriter, r *http.Request) error {
	c.mu.Lock()
	entries := c.conn.Queries()
	c.mu.Unlock()
	return writeJSON(w, http.StatusOK, entries)
}

func (c *ServiceComponent) queryLogGetHandler(w http.ResponseWriter, r *http.Request) error {
	idx, err := strconv.Atoi(httpsrv.GetIdList(r)[0])
	if err != nil {
		return writeError(w, errors.Join(ErrBadRequest, err))
	}
	c.mu.Lock()
	entries := c.conn.Queries()
	c.mu.Unlock()
	if idx < 0 || idx >= len(entries) {
		w.WriteHeader(http.StatusNotFound)
		return nil
	}
	return writeJSON(w, http.StatusOK, entries[idx])
}

func (c *ServiceComponent) queryLogResetHandler(w http.ResponseWriter, r *http.Request) error {
	c.mu.Lock()
	c.conn.ResetQueries()
	c.published = 0
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
	return nil
}
