package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/floxi-finance/floxi-keeper/database/models"
	"github.com/floxi-finance/floxi-keeper/types"
)

func pagination(r *http.Request) (int64, int64) {
	page, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.ParseInt(r.URL.Query().Get("pageSize"), 10, 64)
	if err != nil || pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	return page, pageSize
}

// statusParam returns the status query parameter if it is one of allowed.
func statusParam(r *http.Request, allowed ...string) (string, error) {
	status := strings.ToUpper(r.URL.Query().Get("status"))
	if status == "" {
		return "", nil
	}
	for _, a := range allowed {
		if status == a {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid status %q, expected one of %s", status, strings.Join(allowed, ", "))
}

func (s *Server) handleWithdrawalRequestsGet(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	status, err := statusParam(r, string(types.Requested), string(types.RequestInitiated), string(types.RequestFailed))
	if err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}

	filter := models.Filter{Status: status}
	if from := r.URL.Query().Get("from"); from != "" {
		if !common.IsHexAddress(from) {
			ERROR(w, http.StatusBadRequest, fmt.Errorf("invalid address %q", from))
			return
		}
		filter.From = strings.ToLower(common.HexToAddress(from).Hex())
	}

	result, err := s.db.ListWithdrawalRequests(r.Context(), filter, page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

func (s *Server) handleQueuedWithdrawalsGet(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	result, err := s.db.ListQueuedWithdrawals(r.Context(), page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

func (s *Server) handleCompletedWithdrawalsGet(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	status, err := statusParam(r, string(types.Pending), string(types.Reserved), string(types.L1AssetsSet))
	if err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.db.ListCompletedWithdrawals(r.Context(), models.Filter{Status: status}, page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

// handleUnmatchedDepositsGet lists bridge deposits still waiting for their
// completed L1 withdrawal.
func (s *Server) handleUnmatchedDepositsGet(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	result, err := s.db.ListUnmatchedDeposits(r.Context(), page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}
