package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"carmarket/internal/middleware"
	"carmarket/internal/util"
)

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		util.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return false
	}
	return true
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	util.WriteAppError(w, err, middleware.RequestID(r.Context()))
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	util.WriteError(w, http.StatusBadRequest, "bad_request", msg, middleware.RequestID(r.Context()))
}

// maxPage keeps (page-1)*page_size well inside an int64 OFFSET.
const maxPage = 100000

func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 25
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = min(p, maxPage)
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil {
			if ps < 1 {
				ps = 1
			}
			if ps > 100 {
				ps = 100
			}
			pageSize = ps
		}
	}
	return page, pageSize
}

type pageWindow struct {
	page, size int
}

func (p pageWindow) limit() int  { return p.size }
func (p pageWindow) offset() int { return (p.page - 1) * p.size }

func pageOf(r *http.Request) pageWindow {
	page, size := parsePagination(r)
	return pageWindow{page: page, size: size}
}

func writePage(w http.ResponseWriter, p pageWindow, items any, total int) {
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "page": p.page, "page_size": p.size, "total": total})
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryFloat(r *http.Request, key string) (*float64, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}
