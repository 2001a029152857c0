package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"fintrack/internal/auth"
	"fintrack/internal/core"
)

func owner(r *http.Request) string {
	u, _ := auth.UserFrom(r.Context())
	return u.ID
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	spec := s.builder.Build(listParams(r))
	res, err := s.tx.List(r.Context(), owner(r), spec)
	if err != nil {
		s.writeError(w, r, "list_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success:    true,
		Data:       res.Records,
		Pagination: res.Pagination,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.tx.Get(r.Context(), owner(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, "get_transaction", err)
		return
	}
	writeData(w, http.StatusOK, t)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badBody(w, err)
		return
	}
	n, err := in.ToNew(s.loc)
	if err != nil {
		s.writeError(w, r, "create_transaction", err)
		return
	}

	t, err := s.tx.Create(r.Context(), owner(r), n)
	if err != nil {
		s.writeError(w, r, "create_transaction", err)
		return
	}
	writeData(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badBody(w, err)
		return
	}
	p, err := in.ToPatch(s.loc)
	if err != nil {
		s.writeError(w, r, "update_transaction", err)
		return
	}

	t, err := s.tx.Update(r.Context(), owner(r), mux.Vars(r)["id"], p)
	if err != nil {
		s.writeError(w, r, "update_transaction", err)
		return
	}
	writeData(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.tx.Delete(r.Context(), owner(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, "delete_transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Transaction deleted successfully"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.tx.Categories())
}
