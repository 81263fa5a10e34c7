package api

import (
	"net/http"

	"github.com/floxi-finance/floxi-keeper/database/models"
	"github.com/floxi-finance/floxi-keeper/types"
)

func (s *Server) handlePassengersGet(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	status, err := statusParam(r, string(types.Embarked), string(types.Departed))
	if err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.db.ListPassengers(r.Context(), models.Filter{Status: status}, page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}
